package transport

import (
	"context"
	"time"
)

// UserRef is a resolved messaging-platform user.
// ID is the opaque external identifier callers pass around; ChatID is the
// platform-native address used for delivery.
type UserRef struct {
	ID     string
	ChatID int64
}

// MessageRef identifies a delivered message (for audit/debug).
type MessageRef struct {
	ID     string
	ChatID int64
}

// Update is an inbound free-text reply from a user.
type Update struct {
	UserID   string
	Username string
	Text     string
	At       time.Time
}

// Messenger is the messaging-platform contract.
//
// ResolveUser and SendDM report failures; the caller decides whether to
// retry. Implementations must not be called while holding state locks.
type Messenger interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	ResolveUser(ctx context.Context, id string) (UserRef, error)
	SendDM(ctx context.Context, to UserRef, text string) (MessageRef, error)
	SendChannel(ctx context.Context, channelID string, text string) (MessageRef, error)
}
