// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Tea commands for the console. Each command captures the values it needs
// as locals so no model state is read from another goroutine.
package console

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/command"
	"github.com/abdallahelabd/bioterm/internal/identity"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/upload"
)

// opTimeout bounds every store round trip issued from the UI.
const opTimeout = 15 * time.Second

// animTick schedules the next typewriter advance.
func animTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return animTickMsg{}
	})
}

// listenUpdates waits for the next session update. The command re-arms
// itself from Update after every delivery.
func listenUpdates(s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-s.Updates()
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(u)
	}
}

// sendMessage appends a chat message with an optional staged attachment.
func sendMessage(s *chat.Session, body string, att *model.Attachment) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		stored, err := s.Send(ctx, body, att)
		return sendResultMsg{Stored: stored, Err: err}
	}
}

// sendReply appends an admin reply from the panel.
func sendReply(s *chat.Session, to, body string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		stored, err := s.SendReply(ctx, to, body)
		return sendResultMsg{Stored: stored, Err: err}
	}
}

// elevate attempts admin elevation with the supplied credentials.
func elevate(id *identity.Resolver, passcode, otp string) tea.Cmd {
	return func() tea.Msg {
		ok, err := id.Elevate(passcode, otp)
		return elevationMsg{OK: ok, Err: err}
	}
}

// renderCV renders the markdown CV for the current width.
func renderCV(width int) tea.Cmd {
	return func() tea.Msg {
		out, err := command.RenderCV(width)
		return cvMsg{Content: out, Err: err}
	}
}

// stageAttachment validates and stores an image file for the next message.
func stageAttachment(u *upload.Uploader, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		att, err := u.StageFile(ctx, path, nil)
		return attachmentStagedMsg{Attachment: att, Err: err}
	}
}

// toggleReaction flips an emoji reaction on a message.
func toggleReaction(s *chat.Session, id, emoji string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.React(ctx, id, emoji); err != nil {
			return opFailedMsg{Err: err}
		}
		return nil
	}
}

// deleteMessage removes one message via the panel.
func deleteMessage(s *chat.Session, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.DeleteMessage(ctx, id); err != nil {
			return opFailedMsg{Err: err}
		}
		return nil
	}
}

// clearThread removes a visitor's conversation via the panel.
func clearThread(s *chat.Session, handle string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := s.ClearThread(ctx, handle); err != nil {
			return opFailedMsg{Err: err}
		}
		return nil
	}
}

// markThreadSeen issues the admin read receipts for an opened thread.
func markThreadSeen(s *chat.Session, handle string) tea.Cmd {
	return func() tea.Msg {
		s.MarkThreadSeen(handle)
		return nil
	}
}
