// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package console

import (
	"fmt"
	"strings"

	"github.com/abdallahelabd/bioterm/internal/command"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/ui/components"
	"github.com/abdallahelabd/bioterm/internal/ui/styles"
	"github.com/abdallahelabd/bioterm/internal/util"
)

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showPanel {
		return m.viewPanel()
	}

	var b strings.Builder

	for _, line := range m.queue.View() {
		b.WriteString(styles.OutputStyle.Render(line))
		b.WriteByte('\n')
	}

	if m.mode == command.ModeChat {
		m.viewTranscript(&b)
	}

	if m.errText != "" {
		b.WriteString(styles.ErrorStyle.Render(m.errText))
		b.WriteByte('\n')
	}

	b.WriteString(styles.PromptStyle.Render(m.promptString()))
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	b.WriteString(components.RenderCommandBar(m.width, m.mode == command.ModeChat, m.admin))

	return b.String()
}

// viewTranscript renders the visible chat messages with delivery ticks and
// reactions.
func (m Model) viewTranscript(b *strings.Builder) {
	handle := m.id.Handle()
	for i := range m.messages {
		msg := &m.messages[i]
		b.WriteString(renderMessage(msg, handle, m.width))
		b.WriteByte('\n')
	}
	if m.pendingAtt != nil {
		b.WriteString(styles.HintStyle.Render("📎 attachment staged"))
		b.WriteByte('\n')
	}
}

// renderMessage formats one chat line: author, body, attachment marker,
// reaction, and the WhatsApp-style ticks on the viewer's own messages.
func renderMessage(msg *model.Message, viewer string, width int) string {
	style := styles.VisitorMsgStyle
	if msg.FromAdmin() {
		style = styles.AdminMsgStyle
	}

	var sb strings.Builder
	sb.WriteString(msg.Author)
	sb.WriteString(": ")
	sb.WriteString(util.StripTags(msg.Body))

	if msg.Attachment != nil {
		sb.WriteString(" [image]")
	}
	if msg.Reaction != "" {
		sb.WriteString(" ")
		sb.WriteString(msg.Reaction)
	}

	line := sb.String()
	if width > 8 {
		line = util.TruncateWidth(line, width-4)
	}
	line = style.Render(line)

	// Ticks only decorate what the viewer wrote.
	if msg.Author == viewer {
		line += " " + styles.TickStyle.Render(ticks(msg))
	}
	return line
}

// ticks renders ✓ for delivered, ✓✓ once the other side has seen it.
func ticks(msg *model.Message) string {
	seen := msg.SeenByAdmin
	if msg.FromAdmin() {
		seen = msg.SeenByRecipient
	}
	if seen {
		return "✓✓"
	}
	return "✓"
}

// =============================================================================
// PANEL VIEW
// =============================================================================

func (m Model) viewPanel() string {
	var b strings.Builder
	b.WriteString(styles.AdminBadgeStyle.Render("── inbox ──"))
	b.WriteByte('\n')

	switch m.panel.state {
	case panelThreads:
		m.viewThreadList(&b)
		b.WriteString(styles.HintStyle.Render("enter open · c clear · esc close"))
	case panelThread, panelReply:
		m.viewThread(&b)
	case panelConfirm:
		m.viewConfirm(&b)
	}
	return b.String()
}

func (m Model) viewThreadList(b *strings.Builder) {
	if len(m.panel.threads) == 0 {
		b.WriteString(styles.HintStyle.Render("no conversations yet"))
		b.WriteByte('\n')
		return
	}
	for i := range m.panel.threads {
		t := &m.panel.threads[i]
		row := t.Handle
		if last := t.Last(); last != nil {
			row += " — " + util.FirstLine(util.StripTags(last.Body))
		}
		if m.width > 8 {
			row = util.TruncateWidth(row, m.width-6)
		}
		if t.Unread() {
			row = styles.UnreadStyle.Render("● ") + row
		} else {
			row = "  " + row
		}
		if i == m.panel.cursor {
			row = styles.SelectedStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}
}

func (m Model) viewThread(b *strings.Builder) {
	t := m.panel.activeThread()
	if t == nil {
		b.WriteString(styles.HintStyle.Render("thread is gone"))
		b.WriteByte('\n')
		return
	}

	b.WriteString(styles.PromptStyle.Render(t.Handle))
	b.WriteByte('\n')
	for i := range t.Messages {
		row := renderMessage(&t.Messages[i], model.AdminName, m.width)
		if i == m.panel.msgCursor && m.panel.state == panelThread {
			row = "> " + row
		} else {
			row = "  " + row
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}

	if m.panel.state == panelReply {
		b.WriteString(m.panel.reply.View())
		b.WriteByte('\n')
	} else {
		b.WriteString(styles.HintStyle.Render("r reply · l react · d delete · c clear · esc back"))
	}
}

func (m Model) viewConfirm(b *strings.Builder) {
	var what string
	switch m.panel.confirm {
	case confirmDelete:
		what = "delete this message"
		if sel := m.panel.selectedMessage(); sel != nil {
			what = fmt.Sprintf("delete %q", util.TruncateWidth(util.FirstLine(sel.Body), 30))
		}
	case confirmClear:
		what = fmt.Sprintf("clear the whole %s conversation", m.panel.active)
	}
	b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("Really %s? (y/n)", what)))
	b.WriteByte('\n')
}
