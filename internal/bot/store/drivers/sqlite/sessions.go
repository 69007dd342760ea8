package sqlite

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/store"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) GetSession(ctx context.Context, discordUserID int64) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT discord_user_id, state, draft, created_at, updated_at
		 FROM sessions WHERE discord_user_id = ?`, discordUserID)

	var s domain.Session
	var state, draft string
	if err := row.Scan(&s.DiscordUserID, &state, &draft, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.State = domain.SessionState(state)
	if err := json.Unmarshal([]byte(draft), &s.Draft); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.Session) error {
	draft, err := json.Marshal(s.Draft)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO sessions (discord_user_id, state, draft)
		 VALUES (?, ?, ?)
		 ON CONFLICT (discord_user_id)
		 DO UPDATE SET state = excluded.state, draft = excluded.draft, updated_at = CURRENT_TIMESTAMP`,
		s.DiscordUserID, string(s.State), string(draft))
	return err
}

// MergeSession is read-modify-write without versioning or a wrapping
// transaction. Two concurrent merges for the same user race and the last
// write wins; flow steps are human-paced, so this is the accepted contract.
func (r *sessionsRepo) MergeSession(ctx context.Context, discordUserID int64, state domain.SessionState, patch domain.DraftPatch) (domain.Session, error) {
	s, err := r.GetSession(ctx, discordUserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, err
		}
		s = domain.Session{DiscordUserID: discordUserID}
	}

	patch.Apply(&s.Draft)
	s.State = state

	if err := r.PutSession(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}
