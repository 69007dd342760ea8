package domain

import "time"

// SessionState is the explicit position of a user's registration flow.
// Transitions are validated against allowed predecessors instead of being
// inferred from which draft keys happen to be populated.
type SessionState string

const (
	SessionStart         SessionState = "start"
	SessionGroupSelected SessionState = "group_selected"
	SessionInfoEntered   SessionState = "info_entered"
	SessionCommitted     SessionState = "committed"
)

// Draft is the in-progress, not-yet-committed registration data held in a
// session. Zero values mean "not entered yet"; Confirm re-validates every
// required field before anything is written to the directory.
type Draft struct {
	GroupID    int64  `json:"group_id,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// DraftPatch overlays individual draft keys during a merge. Nil fields are
// left untouched in the stored draft.
type DraftPatch struct {
	GroupID    *int64
	LastName   *string
	FirstName  *string
	ProfileURL *string
}

// Apply overlays the patch onto a draft.
func (p DraftPatch) Apply(d *Draft) {
	if p.GroupID != nil {
		d.GroupID = *p.GroupID
	}
	if p.LastName != nil {
		d.LastName = *p.LastName
	}
	if p.FirstName != nil {
		d.FirstName = *p.FirstName
	}
	if p.ProfileURL != nil {
		d.ProfileURL = *p.ProfileURL
	}
}

// Session is one user's registration scratch space. It is created lazily on
// the first merge, overwritten by later flow steps (last write wins) and left
// in place after a commit; a stale session is harmless because the commit
// path re-validates the whole draft.
type Session struct {
	DiscordUserID int64
	State         SessionState
	Draft         Draft
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
