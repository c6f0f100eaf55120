// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package console

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdallahelabd/bioterm/internal/command"
	"github.com/abdallahelabd/bioterm/internal/model"
)

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - len(m.promptString()) - 1
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case animTickMsg:
		m.queue.Advance()
		if m.queue.Animating() {
			return m, animTick(m.interval)
		}
		m.ticking = false
		return m, nil

	case snapshotMsg:
		m.messages = msg.Messages
		if m.admin {
			m.panel.setThreads(model.GroupThreads(msg.Messages))
			// A message landing in the open thread is being read right
			// now. MarkThreadSeen dedups and fires its patches async, so
			// re-acknowledging on every snapshot is safe here.
			if m.showPanel && m.panel.active != "" {
				m.session.MarkThreadSeen(m.panel.active)
			}
		}
		return m, listenUpdates(m.session)

	case updatesClosedMsg:
		// Session gone; nothing more will arrive.
		return m, nil

	case sendResultMsg:
		if msg.Err != nil {
			m.errText = "send failed: " + msg.Err.Error()
			return m, nil
		}
		m.errText = ""
		m.pendingAtt = nil
		return m, nil

	case elevationMsg:
		return m.handleElevation(msg)

	case cvMsg:
		if msg.Err != nil {
			m.errText = "cv render failed: " + msg.Err.Error()
			return m, nil
		}
		m.queue.EnqueueStatic(strings.Split(strings.TrimRight(msg.Content, "\n"), "\n")...)
		return m, nil

	case attachmentStagedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			return m, nil
		}
		m.errText = ""
		m.pendingAtt = msg.Attachment
		m.queue.EnqueueStatic("📎 Image attached. It will ride on your next message.")
		return m, nil

	case opFailedMsg:
		m.errText = msg.Err.Error()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global quit.
	if msg.String() == "ctrl+c" {
		m.quitting = true
		m.session.Close()
		return m, tea.Quit
	}

	if m.showPanel {
		cmd, closed := m.panel.handleKey(msg, m.session)
		if closed {
			m.showPanel = false
		}
		return m, cmd
	}

	if msg.String() == "enter" {
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit interprets the input line and dispatches the resulting
// action.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	m.input.SetValue("")
	m.errText = ""

	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		m.echoPrompt(trimmed)
	}

	// Console-level escapes that the interpreter does not know about:
	// the panel toggle and attachment staging.
	if m.mode == command.ModeCommand && m.admin && strings.EqualFold(trimmed, "panel") {
		m.showPanel = true
		m.panel.state = panelThreads
		return m, nil
	}
	if m.mode == command.ModeChat {
		if path, ok := strings.CutPrefix(trimmed, "/attach "); ok {
			return m, stageAttachment(m.uploader, strings.TrimSpace(path))
		}
		if emoji, ok := strings.CutPrefix(trimmed, "/react"); ok {
			return m.handleReact(strings.TrimSpace(emoji))
		}
	}

	action := command.Interpret(raw, command.State{Mode: m.mode, Admin: m.admin})
	return m.dispatch(action)
}

func (m Model) dispatch(action command.Action) (tea.Model, tea.Cmd) {
	switch action.Kind {
	case command.ActionNone:
		return m, nil

	case command.ActionOutput:
		m.queue.Enqueue(action.Lines...)
		return m, m.startTicks()

	case command.ActionEnterChat:
		m.mode = command.ModeChat
		m.input.Placeholder = "type a message"
		m.queue.Enqueue(action.Lines...)
		return m, m.startTicks()

	case command.ActionExitChat:
		m.mode = command.ModeCommand
		m.input.Placeholder = "type a command"
		m.queue.Enqueue(action.Lines...)
		return m, m.startTicks()

	case command.ActionSend:
		return m, sendMessage(m.session, action.Message, m.pendingAtt)

	case command.ActionElevate:
		return m, elevate(m.id, action.Passcode, action.OTP)

	case command.ActionLogout:
		if err := m.id.Logout(); err != nil {
			m.errText = "logout failed: " + err.Error()
			return m, nil
		}
		m.admin = false
		m.showPanel = false
		m.queue.Enqueue(action.Lines...)
		return m, m.startTicks()

	case command.ActionShowCV:
		return m, renderCV(m.width)
	}
	return m, nil
}

// handleReact toggles a reaction on the most recent message from the other
// side, the closest console analog of tapping a bubble.
func (m Model) handleReact(emoji string) (tea.Model, tea.Cmd) {
	if emoji == "" {
		emoji = panelReaction
	}
	handle := m.id.Handle()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Author != handle {
			return m, toggleReaction(m.session, m.messages[i].ID, emoji)
		}
	}
	m.errText = "nothing to react to yet"
	return m, nil
}

func (m Model) handleElevation(msg elevationMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errText = "elevation: " + msg.Err.Error()
	}
	if !msg.OK {
		m.queue.Enqueue("❌ Wrong passcode.")
		return m, m.startTicks()
	}
	m.admin = true
	m.queue.Enqueue("✅ Admin mode activated! Type 'panel' to open the inbox.")
	return m, m.startTicks()
}
