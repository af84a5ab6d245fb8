package approval

import "errors"

var (
	ErrInvalidLink      = errors.New("invalid invite link format")
	ErrInviteNotFound   = errors.New("invite link not found")
	ErrForeignInvite    = errors.New("invite does not belong to this server")
	ErrPermission       = errors.New("only the owner can do this")
	ErrExpired          = errors.New("approval request expired")
	ErrNoPendingRequest = errors.New("no pending invite request")
	ErrDuplicateRequest = errors.New("invite request already pending")
	ErrNotRegistered    = errors.New("user has no registered invite")
	// ErrApproverUnreachable means the decision prompt could not be delivered
	// to the owner, so the request was withdrawn.
	ErrApproverUnreachable = errors.New("could not reach the owner for approval")
)
