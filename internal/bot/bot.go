package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/commands"
	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/tracker"
	"discord-invite-tracker/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// warmupConcurrency bounds parallel snapshot fetches on ready.
const warmupConcurrency = 4

type Config struct {
	GuildID string
	Footer  utils.Footer
	// Timeout bounds the work done for one gateway event.
	Timeout time.Duration
}

type Deps struct {
	Client      platform.Client
	Engine      *tracker.Engine
	Workflow    *approval.Workflow
	Handler     *commands.Handler
	Leaderboard interface{ Invalidate(ctx context.Context) }
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Bot struct {
	Session     *discordgo.Session
	cfg         Config
	client      platform.Client
	engine      *tracker.Engine
	workflow    *approval.Workflow
	handler     *commands.Handler
	leaderboard interface{ Invalidate(ctx context.Context) }
	metrics     *metrics.Metrics
	logger      *zap.Logger
	StartTime   time.Time
}

// NewSession builds a discordgo session with the intents the tracker needs
// and a REST transport that reports latency to m.
func NewSession(token string, m *metrics.Metrics) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}

	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       120 * time.Second,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	s.Client = &http.Client{
		Transport: &PerfTransport{Base: tr, Metrics: m},
		Timeout:   15 * time.Second,
	}

	// Members are needed for join events, invites for the use-count snapshots.
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites

	// Nothing reads the state cache beyond the bot user.
	s.StateEnabled = false

	s.ShouldReconnectOnError = true
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 3
	return s, nil
}

func New(s *discordgo.Session, cfg Config, deps Deps) *Bot {
	if cfg.Timeout <= 0 {
		cfg.Timeout = platform.DefaultTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	b := &Bot{
		Session:     s,
		cfg:         cfg,
		client:      deps.Client,
		engine:      deps.Engine,
		workflow:    deps.Workflow,
		handler:     deps.Handler,
		leaderboard: deps.Leaderboard,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		StartTime:   time.Now(),
	}

	s.AddHandler(b.Ready)
	s.AddHandler(b.GuildCreate)
	s.AddHandler(b.GuildDelete)
	s.AddHandler(b.InviteCreate)
	s.AddHandler(b.InviteDelete)
	s.AddHandler(b.GuildMemberAdd)
	s.AddHandler(b.InteractionCreate)
	return b
}

// Start connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	log.Println("⚡ Connecting to Discord Gateway...")
	if err := b.Session.Open(); err != nil {
		log.Printf("❌ Failed to connect to Discord Gateway: %v", err)
		log.Println("   Common causes:")
		log.Println("   • Invalid bot token")
		log.Println("   • Network connectivity issues")
		log.Println("   • Discord API outage")
		return fmt.Errorf("gateway connection failed: %w", err)
	}
	log.Println("✓ Connected to Discord Gateway")

	// Ensure we have the bot user (since state is disabled)
	if b.Session.State.User == nil {
		u, err := b.Session.User("@me")
		if err != nil {
			b.Session.Close()
			return fmt.Errorf("failed to get bot user: %w", err)
		}
		b.Session.State.User = u
	}
	log.Printf("✓ Logged in as: %s (ID: %s)", b.Session.State.User.Username, b.Session.State.User.ID)

	go b.monitorHeartbeat(ctx, 30*time.Second)

	log.Println("🚀 Bot is running!")
	<-ctx.Done()
	return b.Close()
}

func (b *Bot) Close() error {
	log.Printf("Shutting down after %s...", time.Since(b.StartTime).Round(time.Second))
	return b.Session.Close()
}
