// Package roster converts the directory and the role-audit matrix to and
// from comma-separated text, the interchange format used by the bulk admin
// commands.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/platform"
)

var (
	ErrMissingHeader = errors.New("roster: missing header row")
	ErrMissingColumn = errors.New("roster: missing required column")
)

// GroupRow is one imported group line. A nil ID signals "create"; a present
// id that matches no stored group is silently skipped by the importer.
type GroupRow struct {
	ID        *int64
	Name      string
	ShortName string
	Disabled  bool
}

// ParticipantRow is one imported participant line. Empty cells become nil
// patch fields so an omitted value never overwrites stored data.
type ParticipantRow struct {
	ID            *int64
	DiscordUserID int64
	Patch         domain.ParticipantPatch
}

// MatrixRow is one row of the role-audit matrix: the chat user plus, per
// role column, whether the cell was exactly "1".
type MatrixRow struct {
	DiscordUserID int64
	Roles         map[string]bool
}

const (
	groupHeader       = "id,name,short_name,is_disabled"
	participantHeader = "id,last_name,first_name,group_id,github_user_name,discord_user_id"
	userIDColumn      = "discord_user_id"
)

// WriteGroups serializes every group, disabled included.
func WriteGroups(w io.Writer, groups []domain.Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "short_name", "is_disabled"}); err != nil {
		return err
	}
	for _, g := range groups {
		disabled := "0"
		if g.Disabled {
			disabled = "1"
		}
		if err := cw.Write([]string{
			strconv.FormatInt(g.ID, 10), g.Name, g.ShortName, disabled,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadGroups parses a group import. Columns are matched by header name.
func ReadGroups(r io.Reader) ([]GroupRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header, "id", "name", "short_name", "is_disabled")
	if err != nil {
		return nil, err
	}

	rows := make([]GroupRow, 0, len(records))
	for _, rec := range records {
		row := GroupRow{
			Name:      cell(rec, idx["name"]),
			ShortName: cell(rec, idx["short_name"]),
			Disabled:  cell(rec, idx["is_disabled"]) == "1",
		}
		if id, ok, err := parseIDCell(cell(rec, idx["id"])); err != nil {
			return nil, err
		} else if ok {
			row.ID = &id
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteParticipants serializes the participant table.
func WriteParticipants(w io.Writer, participants []domain.Participant) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(participantColumns()); err != nil {
		return err
	}
	for _, p := range participants {
		if err := cw.Write(participantCells(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadParticipants parses a participant import.
func ReadParticipants(r io.Reader) ([]ParticipantRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header,
		"id", "last_name", "first_name", "group_id", "github_user_name", userIDColumn)
	if err != nil {
		return nil, err
	}

	rows := make([]ParticipantRow, 0, len(records))
	for _, rec := range records {
		var row ParticipantRow
		if id, ok, err := parseIDCell(cell(rec, idx["id"])); err != nil {
			return nil, err
		} else if ok {
			row.ID = &id
		}

		if v := cell(rec, idx[userIDColumn]); v != "" {
			userID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("roster: bad %s %q: %w", userIDColumn, v, err)
			}
			row.DiscordUserID = userID
		}

		if v := cell(rec, idx["last_name"]); v != "" {
			row.Patch.LastName = &v
		}
		if v := cell(rec, idx["first_name"]); v != "" {
			row.Patch.FirstName = &v
		}
		if v := cell(rec, idx["github_user_name"]); v != "" {
			row.Patch.GitHubUserName = &v
		}
		if v := cell(rec, idx["group_id"]); v != "" {
			groupID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("roster: bad group_id %q: %w", v, err)
			}
			row.Patch.GroupID = &groupID
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRoleMatrix serializes the role-audit variant: the participant columns
// plus one column per role, in reversed role order. isMember reports the
// live assignment for a (user, role) pair.
func WriteRoleMatrix(w io.Writer, participants []domain.Participant, roles []platform.Role, isMember func(userID, roleID int64) bool) error {
	reversed := make([]platform.Role, len(roles))
	for i, r := range roles {
		reversed[len(roles)-1-i] = r
	}

	header := participantColumns()
	for _, r := range reversed {
		header = append(header, r.Name)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range participants {
		rec := participantCells(p)
		for _, r := range reversed {
			if isMember(p.DiscordUserID, r.ID) {
				rec = append(rec, "1")
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRoleMatrix parses a role-matrix import. Every header column after
// discord_user_id is treated as a role name; a cell of exactly "1" means
// assign, anything else (including empty) means unassign.
func ReadRoleMatrix(r io.Reader) ([]MatrixRow, error) {
	records, header, err := readAll(r)
	if err != nil {
		return nil, err
	}

	userIdx := -1
	for i, name := range header {
		if name == userIDColumn {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, userIDColumn)
	}
	roleNames := header[userIdx+1:]

	rows := make([]MatrixRow, 0, len(records))
	for _, rec := range records {
		v := cell(rec, userIdx)
		if v == "" {
			continue
		}
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("roster: bad %s %q: %w", userIDColumn, v, err)
		}

		row := MatrixRow{
			DiscordUserID: userID,
			Roles:         make(map[string]bool, len(roleNames)),
		}
		for i, name := range roleNames {
			row.Roles[name] = cell(rec, userIdx+1+i) == "1"
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func participantColumns() []string {
	return []string{"id", "last_name", "first_name", "group_id", "github_user_name", userIDColumn}
}

func participantCells(p domain.Participant) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.LastName,
		p.FirstName,
		strconv.FormatInt(p.GroupID, 10),
		p.GitHubUserName,
		strconv.FormatInt(p.DiscordUserID, 10),
	}
}

func readAll(r io.Reader) (records [][]string, header []string, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	// Role-matrix rows may carry fewer cells than the header when trailing
	// columns are empty; length checks happen per cell instead.
	cr.FieldsPerRecord = -1

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, ErrMissingHeader
	}
	return all[1:], all[0], nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return idx, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseIDCell(v string) (int64, bool, error) {
	if v == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("roster: bad id %q: %w", v, err)
	}
	return id, true, nil
}
