// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package console

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/command"
	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/identity"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/ui/components"
	"github.com/abdallahelabd/bioterm/internal/upload"
)

// =============================================================================
// CONSOLE MODEL
// =============================================================================

// Model is the Bubble Tea model for the console.
type Model struct {
	cfg      *config.Config
	session  *chat.Session
	id       *identity.Resolver
	uploader *upload.Uploader

	// Dimensions
	width  int
	height int

	// Input
	input textinput.Model

	// Typewriter output
	queue    *components.Queue
	interval time.Duration
	// ticking guards the tick loop: exactly one animTickMsg is in flight
	// while an animation runs, no matter how many enqueues happened.
	ticking bool

	// Mode
	mode  command.Mode
	admin bool

	// Chat state
	messages []model.Message
	// pendingAtt is a staged attachment riding on the next sent message.
	pendingAtt *model.Attachment

	// Admin panel
	panel     panelModel
	showPanel bool

	// Transient error line
	errText string

	quitting bool
}

// New builds the console model.
func New(cfg *config.Config, session *chat.Session, id *identity.Resolver, up *upload.Uploader) Model {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "type a command"
	input.CharLimit = 2000
	input.Focus()

	interval := time.Duration(cfg.UI.TypingIntervalMs) * time.Millisecond

	m := Model{
		cfg:      cfg,
		session:  session,
		id:       id,
		uploader: up,
		input:    input,
		queue:    components.NewQueue(),
		interval: interval,
		admin:    id.Role() == model.RoleAdmin,
		panel:    newPanelModel(),
	}
	m.queue.Enqueue(command.BootLines()...)
	// Init cannot mutate the model, so the tick guard for the boot banner
	// is set here.
	m.ticking = m.queue.Animating()
	return m
}

// Init starts the update listener and the boot banner animation.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		listenUpdates(m.session),
	}
	if m.ticking {
		cmds = append(cmds, animTick(m.interval))
	}
	return tea.Batch(cmds...)
}

// startTicks arms the animation loop if output is pending and no tick is in
// flight.
func (m *Model) startTicks() tea.Cmd {
	if m.ticking || !m.queue.Animating() {
		return nil
	}
	m.ticking = true
	return animTick(m.interval)
}

// echoPrompt records the submitted line in the scrollback, the way a real
// shell leaves the executed command behind.
func (m *Model) echoPrompt(line string) {
	m.queue.EnqueueStatic(m.promptString() + line)
}

func (m *Model) promptString() string {
	who := "visitor"
	if m.admin {
		who = "admin"
	}
	if m.mode == command.ModeChat {
		return who + "@abdallah:chat> "
	}
	return who + "@abdallah:~$ "
}
