package store

import (
	"context"
	"errors"

	"github.com/eventops/staffbot/internal/bot/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Groups() Groups
	Participants() Participants
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., the
	// participant upsert at confirm time). The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Groups interface {
	// GetGroupByID returns a group by id, disabled or not.
	GetGroupByID(ctx context.Context, id int64) (domain.Group, error)

	// ListActiveGroups returns enabled groups ordered by id ascending so
	// repeated selection renders are deterministic.
	ListActiveGroups(ctx context.Context) ([]domain.Group, error)

	// ListAllGroups returns every group, disabled included, ordered by id.
	ListAllGroups(ctx context.Context) ([]domain.Group, error)

	// CreateGroup inserts a new group and returns its assigned id.
	CreateGroup(ctx context.Context, name, shortName string, disabled bool) (int64, error)

	// UpdateGroup replaces the mutable fields of an existing group.
	UpdateGroup(ctx context.Context, id int64, name, shortName string, disabled bool) error
}

type Participants interface {
	// GetParticipantByID returns a participant by primary key.
	GetParticipantByID(ctx context.Context, id int64) (domain.Participant, error)

	// GetParticipantByDiscordUserID returns the participant bound to a chat
	// identity. There is at most one.
	GetParticipantByDiscordUserID(ctx context.Context, discordUserID int64) (domain.Participant, error)

	// ListParticipants returns all participants ordered by id ascending.
	ListParticipants(ctx context.Context) ([]domain.Participant, error)

	// ListDiscordUserIDs returns the chat user ids of every participant.
	ListDiscordUserIDs(ctx context.Context) ([]int64, error)

	// CreateParticipant inserts a new participant and returns its assigned id.
	CreateParticipant(ctx context.Context, p domain.Participant) (int64, error)

	// UpdateParticipant overwrites the mutable fields of an existing row and
	// bumps updated_at.
	UpdateParticipant(ctx context.Context, id int64, lastName, firstName string, groupID int64, githubUserName string) error
}

type Sessions interface {
	// GetSession returns the session for a chat user, or ErrNotFound.
	GetSession(ctx context.Context, discordUserID int64) (domain.Session, error)

	// PutSession fully replaces the stored session (insert or update).
	PutSession(ctx context.Context, s domain.Session) error

	// MergeSession loads the existing session (or starts an empty one),
	// overlays the given draft keys, stores state and draft, and returns the
	// result. This is read-modify-write without versioning: two concurrent
	// merges for the same user race and the last write wins.
	MergeSession(ctx context.Context, discordUserID int64, state domain.SessionState, patch domain.DraftPatch) (domain.Session, error)
}
