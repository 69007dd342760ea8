package sqlite

import (
	"context"
	"database/sql"

	"github.com/eventops/staffbot/internal/bot/domain"
)

type groupsRepo struct {
	q dbtx
}

const groupColumns = `id, name, short_name, is_disabled, created_at, updated_at`

func (r *groupsRepo) GetGroupByID(ctx context.Context, id int64) (domain.Group, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	return scanGroup(row)
}

func (r *groupsRepo) ListActiveGroups(ctx context.Context) ([]domain.Group, error) {
	return r.list(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE is_disabled = 0 ORDER BY id ASC`)
}

func (r *groupsRepo) ListAllGroups(ctx context.Context) ([]domain.Group, error) {
	return r.list(ctx,
		`SELECT `+groupColumns+` FROM groups ORDER BY id ASC`)
}

func (r *groupsRepo) list(ctx context.Context, query string) ([]domain.Group, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		var disabled int64
		if err := rows.Scan(&g.ID, &g.Name, &g.ShortName, &disabled, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Disabled = disabled != 0
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *groupsRepo) CreateGroup(ctx context.Context, name, shortName string, disabled bool) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO groups (name, short_name, is_disabled) VALUES (?, ?, ?)`,
		name, shortName, boolToInt(disabled))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *groupsRepo) UpdateGroup(ctx context.Context, id int64, name, shortName string, disabled bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE groups
		 SET name = ?, short_name = ?, is_disabled = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, shortName, boolToInt(disabled), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanGroup(row *sql.Row) (domain.Group, error) {
	var g domain.Group
	var disabled int64
	err := row.Scan(&g.ID, &g.Name, &g.ShortName, &disabled, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return domain.Group{}, mapNotFound(err)
	}
	g.Disabled = disabled != 0
	return g, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// requireRow maps a zero-row UPDATE/DELETE onto ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
