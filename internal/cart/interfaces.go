package cart

import (
	"context"

	"github.com/google/uuid"
)

// LocalStore is the device-session guest cart slot plus the per-login merge
// flag. Load on a missing or corrupt slot returns an empty list; the guest
// cart is best-effort, not durable.
type LocalStore interface {
	Load(ctx context.Context, sessionID string) ([]Line, error)
	Save(ctx context.Context, sessionID string, lines []Line) error
	Clear(ctx context.Context, sessionID string) error

	// MarkMerged sets the once-per-login merge flag, keyed by the login id
	// so a later login in the same session merges again. It returns false
	// when the flag was already set by this or another engine instance.
	MarkMerged(ctx context.Context, userID, sessionID, loginID string) (bool, error)
}

// RemoteStore is the server-authoritative per-user cart table. It has no
// native upsert; the engine re-reads via FindLine immediately before every
// write.
type RemoteStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Line, error)
	// FindLine returns (nil, nil) when the user has no line for the product.
	FindLine(ctx context.Context, userID, productID uuid.UUID) (*Line, error)
	Insert(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	DeleteLine(ctx context.Context, userID, productID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) error
}
