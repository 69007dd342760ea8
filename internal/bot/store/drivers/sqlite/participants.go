package sqlite

import (
	"context"
	"database/sql"

	"github.com/eventops/staffbot/internal/bot/domain"
)

type participantsRepo struct {
	q dbtx
}

const participantColumns = `id, last_name, first_name, group_id, github_user_name, discord_user_id, created_at, updated_at`

func (r *participantsRepo) GetParticipantByID(ctx context.Context, id int64) (domain.Participant, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	return scanParticipant(row)
}

func (r *participantsRepo) GetParticipantByDiscordUserID(ctx context.Context, discordUserID int64) (domain.Participant, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE discord_user_id = ?`, discordUserID)
	return scanParticipant(row)
}

func (r *participantsRepo) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.LastName, &p.FirstName, &p.GroupID, &p.GitHubUserName, &p.DiscordUserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *participantsRepo) ListDiscordUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT discord_user_id FROM participants ORDER BY discord_user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *participantsRepo) CreateParticipant(ctx context.Context, p domain.Participant) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO participants (last_name, first_name, group_id, github_user_name, discord_user_id)
		 VALUES (?, ?, ?, ?, ?)`,
		p.LastName, p.FirstName, p.GroupID, p.GitHubUserName, p.DiscordUserID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *participantsRepo) UpdateParticipant(ctx context.Context, id int64, lastName, firstName string, groupID int64, githubUserName string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE participants
		 SET last_name = ?, first_name = ?, group_id = ?, github_user_name = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		lastName, firstName, groupID, githubUserName, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanParticipant(row *sql.Row) (domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.GroupID, &p.GitHubUserName, &p.DiscordUserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Participant{}, mapNotFound(err)
	}
	return p, nil
}
