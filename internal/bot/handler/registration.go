package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/service"
)

// handleSendStartButton posts the registration entry message with the start
// button attached, into the channel the admin invoked it from.
func (d *Dispatcher) handleSendStartButton(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	text := strings.Join([]string{
		"**Participant registration**",
		"Use the button below to enter or update your participant information.",
		"",
		"You will be asked for:",
		"- your last and first name",
		"- the URL of your GitHub profile page",
		"- your affiliation",
		"",
		"To update your information later, press the button again.",
	}, "\n")

	return platform.Reply{Text: text, Component: ComponentStartButton}, nil
}

func (d *Dispatcher) handleStartButton(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	// The selector component renders the active groups; make sure there is
	// something to select before sending the menu.
	groups, err := d.Directory.ActiveGroups(ctx)
	if err != nil {
		return retryReply(), err
	}
	if len(groups) == 0 {
		return platform.Reply{
			Text:      "No groups are open for registration yet. Please try again later.",
			Ephemeral: true,
		}, nil
	}

	return platform.Reply{
		Text:      "Select your affiliation:",
		Ephemeral: true,
		Component: ComponentGroupSelector,
	}, nil
}

func (d *Dispatcher) handleGroupSelect(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	if len(ev.Values) == 0 {
		return platform.Reply{
			Text:      "No group selected. Please try again.",
			Ephemeral: true,
		}, nil
	}
	groupID, err := strconv.ParseInt(ev.Values[0], 10, 64)
	if err != nil {
		return platform.Reply{
			Text:      "That selection was not recognized. Please try again.",
			Ephemeral: true,
		}, nil
	}

	if err := d.Registration.ChooseGroup(ctx, ev.UserID, groupID); err != nil {
		if errors.Is(err, service.ErrGroupNotFound) {
			return platform.Reply{
				Text:      "That group no longer exists. Please select again.",
				Ephemeral: true,
			}, nil
		}
		return retryReply(), err
	}

	return platform.Reply{
		Text:      "Next, fill in your participant information:",
		Ephemeral: true,
		Component: ComponentInfoModalOpen,
	}, nil
}

func (d *Dispatcher) handleInfoModalOpen(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	return platform.Reply{Ephemeral: true, Component: ComponentInfoModal}, nil
}

func (d *Dispatcher) handleInfoSubmit(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	summary, err := d.Registration.SubmitInfo(ctx, ev.UserID,
		ev.Fields["last_name"], ev.Fields["first_name"], ev.Fields["profile_url"])
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProfileURL):
			return platform.Reply{
				Text:      "The GitHub URL is not valid. Please resubmit the form.",
				Ephemeral: true,
			}, nil
		case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrOutOfOrder):
			return platform.Reply{
				Text:      "Your group selection was not found. Please start over from the beginning.",
				Ephemeral: true,
			}, nil
		case errors.Is(err, service.ErrGroupNotFound):
			return platform.Reply{
				Text:      "Your selected group was not found. Please start over from the beginning.",
				Ephemeral: true,
			}, nil
		}
		return retryReply(), err
	}

	text := strings.Join([]string{
		"Register with the following information?",
		fmt.Sprintf("> **Name:** %s %s", summary.LastName, summary.FirstName),
		fmt.Sprintf("> **GitHub:** %s", summary.ProfileURL),
		fmt.Sprintf("> **Affiliation:** %s", summary.GroupName),
	}, "\n")

	return platform.Reply{
		Text:      text,
		Ephemeral: true,
		Component: ComponentConfirm,
	}, nil
}

func (d *Dispatcher) handleConfirm(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	result, err := d.Registration.Confirm(ctx, ev.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrOutOfOrder):
			return platform.Reply{
				Text:      "Your session was not found. Please start over from the beginning.",
				Ephemeral: true,
			}, nil
		case errors.Is(err, service.ErrIncompleteDraft):
			return platform.Reply{
				Text:      "Some fields are missing. Please start over from the beginning.",
				Ephemeral: true,
			}, nil
		case errors.Is(err, service.ErrGroupNotFound):
			return platform.Reply{
				Text:      "Your selected group was not found. Please start over from the beginning.",
				Ephemeral: true,
			}, nil
		}
		return retryReply(), err
	}

	if result.Created {
		return platform.Reply{Text: "Registered! Welcome aboard.", Ephemeral: true}, nil
	}
	return platform.Reply{Text: "Your information has been updated.", Ephemeral: true}, nil
}

// retryReply is the generic prompt for persistence failures; the error
// itself propagates so the transport marks the interaction as failed.
func retryReply() platform.Reply {
	return platform.Reply{
		Text:      "Something went wrong. Please try again.",
		Ephemeral: true,
	}
}
