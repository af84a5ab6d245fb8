package models

import "time"

// RegisteredInvite binds an invite code to the member credited for its uses.
type RegisteredInvite struct {
	InviterID  string `json:"inviter_id"`
	InviteCode string `json:"invite_code"`
}

// JoinRecord is written once per member, the first time a join is attributed.
type JoinRecord struct {
	MemberID  string    `json:"member_id"`
	InviterID string    `json:"inviter_id"`
	JoinDate  time.Time `json:"join_date"`
}

type InviteRequestStatus string

const (
	RequestPending InviteRequestStatus = "pending"
	// RequestApproving marks a request claimed by an in-flight approval.
	RequestApproving InviteRequestStatus = "approving"
)

// InviteRequest is an outstanding request for a fresh non-expiring invite.
type InviteRequest struct {
	RequesterID string              `json:"requester_id"`
	Status      InviteRequestStatus `json:"status"`
}

// LeaderboardEntry is one row of the top inviters board.
type LeaderboardEntry struct {
	InviterID string `json:"inviter_id"`
	Joins     int    `json:"joins"`
}

type Vouch struct {
	ID            int64  `json:"id"`
	UserID        string `json:"user_id"`
	UserName      string `json:"user_name"`
	Stars         int    `json:"stars"`
	Message       string `json:"message"`
	ProofURL      string `json:"proof_url"`
	VouchedByID   string `json:"vouched_by_id"`
	VouchedByName string `json:"vouched_by_name"`
	Timestamp     string `json:"timestamp"`
}

// VouchTimeLayout is the UTC layout vouch timestamps are stored in.
const VouchTimeLayout = "2006-01-02 15:04:05"

// Settings keys
const (
	SettingLogChannel = "log_channel_id"
)
