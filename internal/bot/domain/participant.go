package domain

import "time"

type Participant struct {
	ID             int64
	LastName       string
	FirstName      string
	GroupID        int64 // Foreign key to groups; may point at a disabled group
	GitHubUserName string
	DiscordUserID  int64 // Unique; one participant record per chat identity
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ParticipantPatch carries an optional value per mutable participant field.
// A nil field means "leave unchanged"; a non-nil field is applied as-is, so
// an intentionally cleared value is distinguishable from an absent one.
type ParticipantPatch struct {
	LastName       *string
	FirstName      *string
	GroupID        *int64
	GitHubUserName *string
}

// Complete reports whether the patch carries every field required to create
// a participant from scratch.
func (p ParticipantPatch) Complete() bool {
	return p.LastName != nil && *p.LastName != "" &&
		p.FirstName != nil && *p.FirstName != "" &&
		p.GroupID != nil && *p.GroupID != 0 &&
		p.GitHubUserName != nil && *p.GitHubUserName != ""
}

// Apply overlays the patch onto an existing participant.
func (p ParticipantPatch) Apply(target *Participant) {
	if p.LastName != nil {
		target.LastName = *p.LastName
	}
	if p.FirstName != nil {
		target.FirstName = *p.FirstName
	}
	if p.GroupID != nil {
		target.GroupID = *p.GroupID
	}
	if p.GitHubUserName != nil {
		target.GitHubUserName = *p.GitHubUserName
	}
}
