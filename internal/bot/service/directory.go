package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/roster"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/pkg/slogx"
)

var ErrIncompletePatch = errors.New("participant patch incomplete for create")

// Directory manages the committed Group/Participant store and applies the
// bulk tabular imports.
type Directory struct {
	Store store.Store
}

// ActiveGroups returns enabled groups in id-ascending order, the stable
// ordering the selection menu renders.
func (s *Directory) ActiveGroups(ctx context.Context) ([]domain.Group, error) {
	return s.Store.Groups().ListActiveGroups(ctx)
}

// AllGroups returns every group, disabled included.
func (s *Directory) AllGroups(ctx context.Context) ([]domain.Group, error) {
	return s.Store.Groups().ListAllGroups(ctx)
}

// GetGroup fetches a group by id.
func (s *Directory) GetGroup(ctx context.Context, id int64) (domain.Group, error) {
	g, err := s.Store.Groups().GetGroupByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Group{}, ErrGroupNotFound
	}
	return g, err
}

// Participants returns every participant in id-ascending order.
func (s *Directory) Participants(ctx context.Context) ([]domain.Participant, error) {
	return s.Store.Participants().ListParticipants(ctx)
}

// RegisteredUserIDs returns the chat user ids of every participant.
func (s *Directory) RegisteredUserIDs(ctx context.Context) ([]int64, error) {
	return s.Store.Participants().ListDiscordUserIDs(ctx)
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created int
	Updated int
	Skipped int // rows whose id matched nothing; tolerated, not an error
}

// ImportGroups applies a bulk group import in one transaction: rows without
// an id are created, rows with an id update the matching group, and rows
// whose id is unknown are silently skipped to tolerate a stale id column.
func (s *Directory) ImportGroups(ctx context.Context, rows []roster.GroupRow) (ImportResult, error) {
	log := slogx.FromContext(ctx)

	var result ImportResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, row := range rows {
			if row.ID == nil {
				if _, err := tx.Groups().CreateGroup(ctx, row.Name, row.ShortName, row.Disabled); err != nil {
					return err
				}
				result.Created++
				continue
			}

			err := tx.Groups().UpdateGroup(ctx, *row.ID, row.Name, row.ShortName, row.Disabled)
			if errors.Is(err, store.ErrNotFound) {
				result.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		log.Error("group import failed", slog.Any("error", err))
		return ImportResult{}, err
	}

	log.Info("groups imported",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ImportParticipants applies a bulk participant import with the same
// create/update/skip rules as ImportGroups. Updates apply only the fields
// carried by the row's patch.
func (s *Directory) ImportParticipants(ctx context.Context, rows []roster.ParticipantRow) (ImportResult, error) {
	log := slogx.FromContext(ctx)

	var result ImportResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, row := range rows {
			if row.ID == nil {
				if !row.Patch.Complete() || row.DiscordUserID == 0 {
					return ErrIncompletePatch
				}
				p := domain.Participant{DiscordUserID: row.DiscordUserID}
				row.Patch.Apply(&p)
				if _, err := tx.Participants().CreateParticipant(ctx, p); err != nil {
					return err
				}
				result.Created++
				continue
			}

			existing, err := tx.Participants().GetParticipantByID(ctx, *row.ID)
			if errors.Is(err, store.ErrNotFound) {
				result.Skipped++
				continue
			}
			if err != nil {
				return err
			}

			row.Patch.Apply(&existing)
			if err := tx.Participants().UpdateParticipant(ctx, existing.ID,
				existing.LastName, existing.FirstName, existing.GroupID, existing.GitHubUserName); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		log.Error("participant import failed", slog.Any("error", err))
		return ImportResult{}, err
	}

	log.Info("participants imported",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// UpsertParticipant is the admin-driven upsert keyed by chat user id.
// Creation requires a complete patch; an update applies only the carried
// fields. The read-decide-write runs in one transaction so a concurrent
// retry cannot create a duplicate row for the same user.
func (s *Directory) UpsertParticipant(ctx context.Context, discordUserID int64, patch domain.ParticipantPatch) (created bool, err error) {
	log := slogx.FromContext(ctx)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Participants().GetParticipantByDiscordUserID(ctx, discordUserID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !patch.Complete() {
				return ErrIncompletePatch
			}
			p := domain.Participant{DiscordUserID: discordUserID}
			patch.Apply(&p)
			if _, err := tx.Participants().CreateParticipant(ctx, p); err != nil {
				return err
			}
			created = true
			return nil

		case err != nil:
			return err
		}

		patch.Apply(&existing)
		return tx.Participants().UpdateParticipant(ctx, existing.ID,
			existing.LastName, existing.FirstName, existing.GroupID, existing.GitHubUserName)
	})
	if err != nil {
		if !errors.Is(err, ErrIncompletePatch) {
			log.Error("participant upsert failed",
				slog.Int64("user_id", discordUserID),
				slog.Any("error", err),
			)
		}
		return false, err
	}

	log.Info("participant upserted",
		slog.Int64("user_id", discordUserID),
		slog.Bool("created", created),
	)
	return created, nil
}
