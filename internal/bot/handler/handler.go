// Package handler maps inbound platform events onto the bot's services and
// renders replies. Every event is handled as an independent unit of work
// with its own request id bound into the context logger.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/service"
	"github.com/eventops/staffbot/pkg/slogx"
)

// Component and command identifiers carried in Event.CustomID.
const (
	ComponentStartButton   = "start_participant_info_input"
	ComponentGroupSelector = "group_selector"
	ComponentInfoModalOpen = "open_participant_info_modal"
	ComponentInfoModal     = "participant_info_modal"
	ComponentConfirm       = "confirm"

	CommandSendStartButton   = "send_participant_info_button"
	CommandListGroups        = "list_groups"
	CommandImportGroups      = "import_groups"
	CommandListParticipants  = "list_participants"
	CommandUpdateParticipant = "update_participant"
	CommandSyncRoles         = "sync_roles"
	CommandSetNick           = "set_nick"
	CommandRoleAudit         = "role_audit"
	CommandImportRoleMatrix  = "import_role_matrix"
)

var ErrUnknownEvent = errors.New("handler: unknown event")

// Dispatcher routes events to the services.
type Dispatcher struct {
	Registration *service.Registration
	Directory    *service.Directory
	RoleSync     *service.RoleSync
	Nickname     *service.Nickname
	Gateway      platform.Gateway
	Logger       *slog.Logger
}

// Handle processes one inbound event and returns the reply to render.
// Recoverable problems (validation, unknown ids, missing admin capability)
// come back as user-facing reply text with a nil error; the error return is
// reserved for failures the surrounding transport should mark as failed.
func (d *Dispatcher) Handle(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	ctx = slogx.WithContext(ctx, d.Logger)
	ctx = slogx.WithRequestID(ctx, ulid.Make().String())

	log := slogx.FromContext(ctx)
	log.Debug("event received",
		slog.String("kind", string(ev.Kind)),
		slog.String("custom_id", ev.CustomID),
		slog.Int64("user_id", ev.UserID),
	)

	switch ev.Kind {
	case platform.EventButton:
		switch ev.CustomID {
		case ComponentStartButton:
			return d.handleStartButton(ctx, ev)
		case ComponentInfoModalOpen:
			return d.handleInfoModalOpen(ctx, ev)
		case ComponentConfirm:
			return d.handleConfirm(ctx, ev)
		}

	case platform.EventMenuSelect:
		if ev.CustomID == ComponentGroupSelector {
			return d.handleGroupSelect(ctx, ev)
		}

	case platform.EventModalSubmit:
		switch ev.CustomID {
		case ComponentInfoModal:
			return d.handleInfoSubmit(ctx, ev)
		case CommandImportGroups:
			return d.handleImportGroups(ctx, ev)
		case CommandImportRoleMatrix:
			return d.handleImportRoleMatrix(ctx, ev)
		}

	case platform.EventCommand:
		return d.handleCommand(ctx, ev)
	}

	log.Warn("unhandled event",
		slog.String("kind", string(ev.Kind)),
		slog.String("custom_id", ev.CustomID),
	)
	return platform.Reply{}, fmt.Errorf("%w: %s/%s", ErrUnknownEvent, ev.Kind, ev.CustomID)
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	// Every command on this surface is privileged.
	reply, ok, err := d.requireAdmin(ctx, ev.UserID)
	if err != nil {
		return platform.Reply{}, err
	}
	if !ok {
		return reply, nil
	}

	switch ev.CustomID {
	case CommandSendStartButton:
		return d.handleSendStartButton(ctx, ev)
	case CommandListGroups:
		return d.handleListGroups(ctx, ev)
	case CommandImportGroups:
		// The command opens the paste modal; the submission arrives as a
		// separate modal event.
		return platform.Reply{Ephemeral: true, Component: CommandImportGroups}, nil
	case CommandListParticipants:
		return d.handleListParticipants(ctx, ev)
	case CommandUpdateParticipant:
		return d.handleUpdateParticipant(ctx, ev)
	case CommandSyncRoles:
		return d.handleSyncRoles(ctx, ev)
	case CommandSetNick:
		return d.handleSetNick(ctx, ev)
	case CommandRoleAudit:
		return d.handleRoleAudit(ctx, ev)
	case CommandImportRoleMatrix:
		return platform.Reply{Ephemeral: true, Component: CommandImportRoleMatrix}, nil
	}

	return platform.Reply{}, fmt.Errorf("%w: command %s", ErrUnknownEvent, ev.CustomID)
}

// requireAdmin gates privileged commands on the platform's administrator
// capability. The denial is a user-facing reply, not an error.
func (d *Dispatcher) requireAdmin(ctx context.Context, userID int64) (platform.Reply, bool, error) {
	admin, err := d.Gateway.IsAdmin(ctx, userID)
	if err != nil {
		return platform.Reply{}, false, err
	}
	if !admin {
		slogx.FromContext(ctx).Warn("privileged command denied", slog.Int64("user_id", userID))
		return platform.Reply{
			Text:      "This command is restricted to server administrators.",
			Ephemeral: true,
		}, false, nil
	}
	return platform.Reply{}, true, nil
}
