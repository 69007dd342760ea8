package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/metrics"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/pkg/slogx"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrNoSession         = errors.New("no registration session")
	ErrOutOfOrder        = errors.New("registration step out of order")
	ErrInvalidProfileURL = errors.New("invalid profile url")
	ErrIncompleteDraft   = errors.New("registration draft incomplete")
)

const (
	DefaultProfileURLPrefix = "https://github.com/"
	DefaultMinProfileURLLen = 20
)

// Registration drives a user through group selection, personal-info capture,
// confirmation and commit. Each step is an independent interaction handler:
// nothing is trusted from earlier steps in memory, every step re-reads the
// stored session, and only Confirm writes to the directory.
type Registration struct {
	Store   store.Store
	Metrics *metrics.Collector

	// ProfileURLPrefix and MinProfileURLLen validate the submitted profile
	// page URL. Zero values fall back to the GitHub defaults.
	ProfileURLPrefix string
	MinProfileURLLen int
}

// InfoSummary is what the confirmation prompt shows the user before commit.
type InfoSummary struct {
	LastName   string
	FirstName  string
	ProfileURL string
	GroupName  string
}

// CommitResult reports the directory write performed by Confirm.
type CommitResult struct {
	Participant domain.Participant
	GroupName   string
	Created     bool // false when an existing row was updated in place
}

// ChooseGroup records the user's group selection in the session draft.
// It is permitted from any state: re-selecting restarts the flow at
// group_selected while preserving the rest of the draft, since Confirm
// re-validates and the user sees every field again before commit.
func (s *Registration) ChooseGroup(ctx context.Context, userID, groupID int64) error {
	log := slogx.FromContext(ctx)

	// 1. The group must exist. A disabled group still resolves here: the
	// selection menu excludes disabled groups, but assignment is historical
	// and an id arriving from a stale menu render must not be rejected as
	// unknown.
	if _, err := s.Store.Groups().GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("group selection with unknown group",
				slog.Int64("user_id", userID),
				slog.Int64("group_id", groupID),
			)
			return ErrGroupNotFound
		}
		log.Error("failed to fetch group", slog.Any("error", err))
		return err
	}

	// 2. Merge the selection into the draft and move to group_selected.
	_, err := s.Store.Sessions().MergeSession(ctx, userID, domain.SessionGroupSelected,
		domain.DraftPatch{GroupID: &groupID})
	if err != nil {
		log.Error("failed to merge session draft",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return err
	}

	log.Debug("group selected",
		slog.Int64("user_id", userID),
		slog.Int64("group_id", groupID),
	)
	return nil
}

// SubmitInfo validates and records the personal-info modal submission. The
// group id is re-read from the stored draft, not from this step's inputs:
// the selection may have been written by a different flow instance.
func (s *Registration) SubmitInfo(ctx context.Context, userID int64, lastName, firstName, profileURL string) (InfoSummary, error) {
	log := slogx.FromContext(ctx)

	lastName = strings.TrimSpace(lastName)
	firstName = strings.TrimSpace(firstName)
	profileURL = strings.TrimSpace(profileURL)

	// 1. Validate the profile URL before touching the session, so a rejected
	// submission leaves the stored draft unmodified.
	if !strings.HasPrefix(profileURL, s.profilePrefix()) || len(profileURL) < s.minProfileLen() {
		log.Warn("rejected profile url",
			slog.Int64("user_id", userID),
			slog.Int("url_len", len(profileURL)),
		)
		return InfoSummary{}, ErrInvalidProfileURL
	}

	// 2. The flow must have passed group selection.
	sess, err := s.Store.Sessions().GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return InfoSummary{}, ErrNoSession
		}
		log.Error("failed to fetch session", slog.Any("error", err))
		return InfoSummary{}, err
	}
	if sess.State == domain.SessionStart {
		return InfoSummary{}, ErrOutOfOrder
	}

	// 3. Merge the entered fields; the stored group_id survives the overlay.
	sess, err = s.Store.Sessions().MergeSession(ctx, userID, domain.SessionInfoEntered,
		domain.DraftPatch{
			LastName:   &lastName,
			FirstName:  &firstName,
			ProfileURL: &profileURL,
		})
	if err != nil {
		log.Error("failed to merge session draft",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return InfoSummary{}, err
	}

	// 4. Resolve the group name for the confirmation prompt from the merged
	// draft.
	group, err := s.Store.Groups().GetGroupByID(ctx, sess.Draft.GroupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return InfoSummary{}, ErrGroupNotFound
		}
		log.Error("failed to fetch group", slog.Any("error", err))
		return InfoSummary{}, err
	}

	log.Debug("participant info entered", slog.Int64("user_id", userID))

	return InfoSummary{
		LastName:   sess.Draft.LastName,
		FirstName:  sess.Draft.FirstName,
		ProfileURL: sess.Draft.ProfileURL,
		GroupName:  group.Name,
	}, nil
}

// Confirm commits the draft to the directory. This is the only point at
// which directory state is mutated; the whole draft is re-read and
// re-validated here because earlier steps ran as independent handlers.
func (s *Registration) Confirm(ctx context.Context, userID int64) (CommitResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Re-read the full draft from the store.
	sess, err := s.Store.Sessions().GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CommitResult{}, ErrNoSession
		}
		log.Error("failed to fetch session", slog.Any("error", err))
		return CommitResult{}, err
	}

	// 2. Confirm only follows a completed info step. A committed session may
	// confirm again: the user is updating their record.
	if sess.State != domain.SessionInfoEntered && sess.State != domain.SessionCommitted {
		return CommitResult{}, ErrOutOfOrder
	}

	// 3. Every required field must be present.
	draft := sess.Draft
	if draft.GroupID == 0 || draft.LastName == "" || draft.FirstName == "" || draft.ProfileURL == "" {
		log.Warn("confirm with incomplete draft", slog.Int64("user_id", userID))
		return CommitResult{}, ErrIncompleteDraft
	}

	// 4. Derive the external identity handle from the profile URL.
	handle, ok := extractHandle(draft.ProfileURL, s.profilePrefix())
	if !ok {
		return CommitResult{}, ErrInvalidProfileURL
	}

	// 5. Upsert the participant atomically: read existing, decide
	// create-vs-update, write, all within one transaction so a retry cannot
	// create a duplicate row.
	var result CommitResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		group, err := tx.Groups().GetGroupByID(ctx, draft.GroupID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		result.GroupName = group.Name

		existing, err := tx.Participants().GetParticipantByDiscordUserID(ctx, userID)
		switch {
		case err == nil:
			existing.LastName = draft.LastName
			existing.FirstName = draft.FirstName
			existing.GroupID = draft.GroupID
			existing.GitHubUserName = handle
			if err := tx.Participants().UpdateParticipant(ctx, existing.ID,
				existing.LastName, existing.FirstName, existing.GroupID, existing.GitHubUserName); err != nil {
				return err
			}
			result.Participant = existing

		case errors.Is(err, store.ErrNotFound):
			p := domain.Participant{
				LastName:       draft.LastName,
				FirstName:      draft.FirstName,
				GroupID:        draft.GroupID,
				GitHubUserName: handle,
				DiscordUserID:  userID,
			}
			id, err := tx.Participants().CreateParticipant(ctx, p)
			if err != nil {
				return err
			}
			p.ID = id
			result.Participant = p
			result.Created = true

		default:
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGroupNotFound) {
			log.Error("failed to commit participant",
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
		}
		return CommitResult{}, err
	}

	// 6. Mark the session committed. The session itself stays around; a
	// stale one is harmless because this method re-validates everything.
	if _, err := s.Store.Sessions().MergeSession(ctx, userID, domain.SessionCommitted, domain.DraftPatch{}); err != nil {
		log.Error("failed to mark session committed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return CommitResult{}, err
	}

	s.Metrics.RecordRegistration()

	log.Info("participant registered",
		slog.Int64("user_id", userID),
		slog.Int64("participant_id", result.Participant.ID),
		slog.Int64("group_id", result.Participant.GroupID),
		slog.Bool("created", result.Created),
	)

	return result, nil
}

func (s *Registration) profilePrefix() string {
	if s.ProfileURLPrefix != "" {
		return s.ProfileURLPrefix
	}
	return DefaultProfileURLPrefix
}

func (s *Registration) minProfileLen() int {
	if s.MinProfileURLLen > 0 {
		return s.MinProfileURLLen
	}
	return DefaultMinProfileURLLen
}

// extractHandle returns the first path segment after the profile-page
// prefix, e.g. "tanaka" from "https://github.com/tanaka".
func extractHandle(profileURL, prefix string) (string, bool) {
	rest := strings.TrimPrefix(profileURL, prefix)
	if rest == profileURL {
		return "", false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
