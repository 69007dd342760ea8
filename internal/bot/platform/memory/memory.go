// Package memory implements the platform gateway in-process. It backs the
// test suites and the dev runtime; a real transport binding satisfies the
// same interface.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eventops/staffbot/internal/bot/platform"
)

type member struct {
	roles map[int64]struct{}
	nick  string
	admin bool
}

// Gateway is an in-memory guild. Safe for concurrent use.
type Gateway struct {
	mu      sync.Mutex
	members map[int64]*member
	roles   map[int64]platform.Role

	// rejected marks (userID, roleID) pairs whose grant/revoke calls fail
	// with ErrCallRejected, to exercise best-effort bulk paths.
	rejected map[[2]int64]struct{}
}

func New() *Gateway {
	return &Gateway{
		members:  make(map[int64]*member),
		roles:    make(map[int64]platform.Role),
		rejected: make(map[[2]int64]struct{}),
	}
}

// AddMember registers a guild member.
func (g *Gateway) AddMember(userID int64, admin bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[userID] = &member{roles: make(map[int64]struct{}), admin: admin}
}

// AddRole defines a guild role.
func (g *Gateway) AddRole(id int64, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles[id] = platform.Role{ID: id, Name: name}
}

// AssignRole puts a member into a role directly, bypassing rejection rules.
func (g *Gateway) AssignRole(userID, roleID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[userID]; ok {
		m.roles[roleID] = struct{}{}
	}
}

// RejectCalls makes future grant/revoke calls for the pair fail.
func (g *Gateway) RejectCalls(userID, roleID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejected[[2]int64{userID, roleID}] = struct{}{}
}

// Nickname returns the member's current nickname.
func (g *Gateway) Nickname(userID int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[userID]; ok {
		return m.nick
	}
	return ""
}

func (g *Gateway) GuildMemberIDs(ctx context.Context) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int64, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (g *Gateway) RoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ids []int64
	for id, m := range g.members {
		if _, ok := m.roles[roleID]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (g *Gateway) Roles(ctx context.Context) ([]platform.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	roles := make([]platform.Role, 0, len(g.roles))
	for _, r := range g.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (g *Gateway) MemberRoleNames(ctx context.Context, userID int64) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[userID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown member %d", platform.ErrCallRejected, userID)
	}

	var names []string
	for id := range m.roles {
		if r, ok := g.roles[id]; ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *Gateway) GrantRole(ctx context.Context, userID, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rejected[[2]int64{userID, roleID}]; ok {
		return fmt.Errorf("%w: grant %d to %d", platform.ErrCallRejected, roleID, userID)
	}
	m, ok := g.members[userID]
	if !ok {
		return fmt.Errorf("%w: unknown member %d", platform.ErrCallRejected, userID)
	}
	m.roles[roleID] = struct{}{}
	return nil
}

func (g *Gateway) RevokeRole(ctx context.Context, userID, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rejected[[2]int64{userID, roleID}]; ok {
		return fmt.Errorf("%w: revoke %d from %d", platform.ErrCallRejected, roleID, userID)
	}
	m, ok := g.members[userID]
	if !ok {
		return fmt.Errorf("%w: unknown member %d", platform.ErrCallRejected, userID)
	}
	delete(m.roles, roleID)
	return nil
}

func (g *Gateway) SetNickname(ctx context.Context, userID int64, nick string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[userID]
	if !ok {
		return fmt.Errorf("%w: unknown member %d", platform.ErrCallRejected, userID)
	}
	m.nick = nick
	return nil
}

func (g *Gateway) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[userID]
	if !ok {
		return false, nil
	}
	return m.admin, nil
}
