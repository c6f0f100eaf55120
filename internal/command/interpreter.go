// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package command interprets console input. Every line typed at the prompt
// passes through Interpret, which maps it to exactly one Action given the
// current mode and role; there is no input that fails to produce an action.
package command

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// MODES AND ACTIONS
// =============================================================================

// Mode is the console input mode.
type Mode int

const (
	// ModeCommand treats input as commands.
	ModeCommand Mode = iota
	// ModeChat treats free text as outgoing chat messages.
	ModeChat
)

// ActionKind discriminates what the console should do with an input line.
type ActionKind int

const (
	// ActionNone ignores the input (blank line).
	ActionNone ActionKind = iota
	// ActionOutput appends informational lines to the animation queue.
	ActionOutput
	// ActionEnterChat switches to chat mode.
	ActionEnterChat
	// ActionExitChat returns to command mode.
	ActionExitChat
	// ActionSend forwards a chat message to the session manager.
	ActionSend
	// ActionElevate attempts admin elevation with the given credentials.
	ActionElevate
	// ActionLogout clears the admin flag.
	ActionLogout
	// ActionShowCV renders the markdown CV.
	ActionShowCV
)

// Action is the interpreter's verdict on one input line.
type Action struct {
	Kind  ActionKind
	Lines []string // informational output for ActionOutput

	Message string // chat body for ActionSend

	Passcode string // for ActionElevate
	OTP      string // optional second factor for ActionElevate
}

// State is the slice of console state the interpreter needs.
type State struct {
	Mode  Mode
	Admin bool
}

// =============================================================================
// INTERPRETER
// =============================================================================

// chat-mode escape tokens, matched case-insensitively.
var exitTokens = map[string]bool{
	"exit": true, "quit": true, "/exit": true, "/quit": true,
}

// Interpret maps one raw input line to an Action. It is synchronous and
// total: unknown commands become "command not found" output, never an error.
func Interpret(raw string, st State) Action {
	trimmed := strings.TrimSpace(norm.NFC.String(raw))
	if trimmed == "" {
		return Action{Kind: ActionNone}
	}

	if st.Mode == ModeChat {
		return interpretChat(trimmed, st)
	}
	return interpretCommand(trimmed, st)
}

func interpretChat(trimmed string, st State) Action {
	if exitTokens[strings.ToLower(trimmed)] {
		return Action{Kind: ActionExitChat, Lines: []string{"Exited chat mode."}}
	}
	if st.Admin {
		// The owner replies from the per-thread panel so replies carry a
		// recipient; free text in chat mode is visitor-only.
		return Action{Kind: ActionOutput, Lines: []string{"❌ Admins must reply using the panel."}}
	}
	return Action{Kind: ActionSend, Message: trimmed}
}

func interpretCommand(trimmed string, st State) Action {
	fields := strings.Fields(trimmed)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "hello":
		return Action{Kind: ActionOutput, Lines: HelloLines()}

	case "experience":
		return Action{Kind: ActionOutput, Lines: ExperienceLines()}

	case "skills":
		return Action{Kind: ActionOutput, Lines: SkillsLines()}

	case "chat":
		return Action{Kind: ActionEnterChat, Lines: []string{"Chat mode activated! Type your message."}}

	case "cv":
		return Action{Kind: ActionShowCV}

	case "admin":
		if len(args) == 0 {
			return Action{Kind: ActionOutput, Lines: []string{"Usage: admin <passcode>"}}
		}
		a := Action{Kind: ActionElevate, Passcode: args[0]}
		if len(args) > 1 {
			a.OTP = args[1]
		}
		return a

	case "logout":
		if !st.Admin {
			return Action{Kind: ActionOutput, Lines: []string{"You are not in admin mode."}}
		}
		return Action{Kind: ActionLogout, Lines: []string{"🚪 Logged out of admin mode."}}

	case "clear":
		// Historical command; chat history now lives in the sync store and
		// is cleared from the admin panel instead.
		return Action{Kind: ActionOutput, Lines: []string{"🧹 Nothing to clear — chat history is synced."}}

	default:
		return Action{Kind: ActionOutput, Lines: []string{"Command not found: " + trimmed}}
	}
}
