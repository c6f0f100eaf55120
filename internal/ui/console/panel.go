// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package console

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/model"
)

// =============================================================================
// ADMIN PANEL
// =============================================================================

// panelState is the moderation panel's focus.
type panelState int

const (
	// panelThreads lists one row per visitor conversation.
	panelThreads panelState = iota
	// panelThread shows one conversation's messages.
	panelThread
	// panelReply focuses the reply input inside a thread.
	panelReply
	// panelConfirm awaits y/n for a destructive action.
	panelConfirm
)

// confirmKind names the pending destructive action.
type confirmKind int

const (
	confirmNone confirmKind = iota
	// confirmDelete removes the selected message.
	confirmDelete
	// confirmClear wipes the selected thread.
	confirmClear
)

// panelReaction is the single reaction label the panel toggles, matching the
// heart tap of the site.
const panelReaction = "❤️"

// panelModel is the owner's moderation panel: thread list, per-thread view,
// reply input, and confirm prompts for destructive actions.
type panelModel struct {
	state   panelState
	threads []model.Thread

	// cursor selects a thread; msgCursor selects a message inside one.
	cursor    int
	msgCursor int

	// active is the open thread's handle. The thread is re-resolved from
	// threads on every render because snapshots replace state wholesale.
	active string

	reply   textinput.Model
	confirm confirmKind
	// confirmFrom restores the previous focus when a confirm is declined.
	confirmFrom panelState
}

func newPanelModel() panelModel {
	reply := textinput.New()
	reply.Prompt = "reply> "
	reply.Placeholder = "type a reply"
	reply.CharLimit = 2000
	return panelModel{reply: reply}
}

// setThreads replaces the panel's data after a snapshot, clamping cursors so
// a deleted thread or message cannot leave the selection dangling.
func (p *panelModel) setThreads(threads []model.Thread) {
	p.threads = threads
	if p.cursor >= len(threads) {
		p.cursor = len(threads) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
	if t := p.activeThread(); t != nil {
		if p.msgCursor >= len(t.Messages) {
			p.msgCursor = len(t.Messages) - 1
		}
		if p.msgCursor < 0 {
			p.msgCursor = 0
		}
	} else if p.state != panelThreads {
		// The open thread vanished (cleared elsewhere); fall back to the
		// list.
		p.state = panelThreads
		p.active = ""
	}
}

// activeThread resolves the open thread in the current snapshot, nil when it
// no longer exists.
func (p *panelModel) activeThread() *model.Thread {
	if p.active == "" {
		return nil
	}
	for i := range p.threads {
		if p.threads[i].Handle == p.active {
			return &p.threads[i]
		}
	}
	return nil
}

// selectedMessage returns the message under the cursor in the open thread.
func (p *panelModel) selectedMessage() *model.Message {
	t := p.activeThread()
	if t == nil || p.msgCursor < 0 || p.msgCursor >= len(t.Messages) {
		return nil
	}
	return &t.Messages[p.msgCursor]
}

// handleKey processes one key press while the panel is open. It returns the
// command to run and whether the panel should close.
func (p *panelModel) handleKey(msg tea.KeyMsg, session *chat.Session) (tea.Cmd, bool) {
	switch p.state {
	case panelThreads:
		return p.keyThreads(msg, session)
	case panelThread:
		return p.keyThread(msg, session)
	case panelReply:
		return p.keyReply(msg, session)
	case panelConfirm:
		return p.keyConfirm(msg, session)
	}
	return nil, false
}

func (p *panelModel) keyThreads(msg tea.KeyMsg, session *chat.Session) (tea.Cmd, bool) {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.threads)-1 {
			p.cursor++
		}
	case "enter":
		if p.cursor < len(p.threads) {
			p.active = p.threads[p.cursor].Handle
			p.state = panelThread
			p.msgCursor = len(p.threads[p.cursor].Messages) - 1
			return markThreadSeen(session, p.active), false
		}
	case "c":
		if p.cursor < len(p.threads) {
			p.active = p.threads[p.cursor].Handle
			p.confirm = confirmClear
			p.confirmFrom = panelThreads
			p.state = panelConfirm
		}
	case "esc", "q":
		return nil, true
	}
	return nil, false
}

func (p *panelModel) keyThread(msg tea.KeyMsg, session *chat.Session) (tea.Cmd, bool) {
	t := p.activeThread()
	if t == nil {
		p.state = panelThreads
		return nil, false
	}

	switch msg.String() {
	case "up", "k":
		if p.msgCursor > 0 {
			p.msgCursor--
		}
	case "down", "j":
		if p.msgCursor < len(t.Messages)-1 {
			p.msgCursor++
		}
	case "r":
		p.state = panelReply
		p.reply.SetValue("")
		p.reply.Focus()
	case "l":
		// Toggle the heart on a visitor message; own messages are not
		// reactable.
		if m := p.selectedMessage(); m != nil && !m.FromAdmin() {
			return toggleReaction(session, m.ID, panelReaction), false
		}
	case "d":
		if p.selectedMessage() != nil {
			p.confirm = confirmDelete
			p.confirmFrom = panelThread
			p.state = panelConfirm
		}
	case "c":
		p.confirm = confirmClear
		p.confirmFrom = panelThread
		p.state = panelConfirm
	case "esc":
		p.state = panelThreads
		p.active = ""
	}
	return nil, false
}

func (p *panelModel) keyReply(msg tea.KeyMsg, session *chat.Session) (tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		body := p.reply.Value()
		p.reply.SetValue("")
		p.reply.Blur()
		p.state = panelThread
		if body != "" {
			return sendReply(session, p.active, body), false
		}
	case "esc":
		p.reply.SetValue("")
		p.reply.Blur()
		p.state = panelThread
	default:
		var cmd tea.Cmd
		p.reply, cmd = p.reply.Update(msg)
		return cmd, false
	}
	return nil, false
}

func (p *panelModel) keyConfirm(msg tea.KeyMsg, session *chat.Session) (tea.Cmd, bool) {
	switch msg.String() {
	case "y", "Y":
		kind := p.confirm
		p.confirm = confirmNone
		switch kind {
		case confirmDelete:
			m := p.selectedMessage()
			p.state = panelThread
			if m != nil {
				return deleteMessage(session, m.ID), false
			}
		case confirmClear:
			handle := p.active
			p.state = panelThreads
			p.active = ""
			if handle != "" {
				return clearThread(session, handle), false
			}
		}
	case "n", "N", "esc":
		p.confirm = confirmNone
		p.state = p.confirmFrom
		if p.state == panelThreads {
			p.active = ""
		}
	}
	return nil, false
}
