package utils

const (
	// Emojis
	EmojiTick  = "✅"
	EmojiCross = "❌"
	EmojiStar  = "⭐"
	EmojiTrash = "🗑️"
	EmojiUser  = "👤"
	EmojiList  = "📜"

	// Colors
	ColorGreen   = 0x2ecc71
	ColorRed     = 0xe74c3c
	ColorBlue    = 0x3498db
	ColorGold    = 0xf1c40f
	ColorPurple  = 0x9b59b6
	ColorBlurple = 0x5865f2
)
