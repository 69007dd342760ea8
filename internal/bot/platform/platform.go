// Package platform defines the chat platform boundary. The bot consumes an
// event stream of interaction callbacks and issues member/role calls back
// through the Gateway; the concrete transport binding lives outside this
// module.
package platform

import (
	"context"
	"errors"
)

// ErrCallRejected reports that the platform refused a single member/role
// call (missing permission, unknown member, rate limit). Bulk operations
// treat it as "this one user not changed" and continue.
var ErrCallRejected = errors.New("platform: call rejected")

// Role is a platform-side role as seen by the bot.
type Role struct {
	ID   int64
	Name string
}

// Gateway is the outbound half of the platform boundary.
type Gateway interface {
	// GuildMemberIDs returns the user ids of every guild member.
	GuildMemberIDs(ctx context.Context) ([]int64, error)

	// RoleMemberIDs returns the user ids currently holding a role.
	RoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error)

	// Roles returns every role defined in the guild.
	Roles(ctx context.Context) ([]Role, error)

	// MemberRoleNames returns the role names held by one member.
	MemberRoleNames(ctx context.Context, userID int64) ([]string, error)

	// GrantRole assigns a role to a member.
	GrantRole(ctx context.Context, userID, roleID int64) error

	// RevokeRole removes a role from a member.
	RevokeRole(ctx context.Context, userID, roleID int64) error

	// SetNickname sets a member's guild nickname.
	SetNickname(ctx context.Context, userID int64, nick string) error

	// IsAdmin reports whether a member holds the administrator capability.
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}
