// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package styles provides the visual styling for the bioterm console.
// The palette is green-phosphor-on-dark, the look of the site this client
// mirrors; colors use Lip Gloss AdaptiveColor so a light terminal stays
// readable.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// PALETTE
// =============================================================================

// Phosphor - primary terminal green, body text and visitor messages
var Phosphor = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}

// PhosphorDim - secondary green, timestamps and hints
var PhosphorDim = lipgloss.AdaptiveColor{Light: "#166534", Dark: "#16A34A"}

// Amber - prompt sigil and the admin badge
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

// Rose - errors and destructive confirms
var Rose = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}

// Sky - admin-authored messages
var Sky = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#7DD3FC"}

// Muted - pending lines, seen ticks, separators
var Muted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#52525B"}

// Surface - selection background in the admin panel
var Surface = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#27272A"}

// =============================================================================
// STYLES
// =============================================================================

var (
	// PromptStyle renders the "visitor@abdallah:~$" prompt prefix.
	PromptStyle = lipgloss.NewStyle().Foreground(Phosphor).Bold(true)

	// OutputStyle renders animated and static output lines.
	OutputStyle = lipgloss.NewStyle().Foreground(Phosphor)

	// HintStyle renders the command bar and inline hints.
	HintStyle = lipgloss.NewStyle().Foreground(PhosphorDim)

	// VisitorMsgStyle renders visitor-authored chat lines.
	VisitorMsgStyle = lipgloss.NewStyle().Foreground(Phosphor)

	// AdminMsgStyle renders owner-authored chat lines.
	AdminMsgStyle = lipgloss.NewStyle().Foreground(Sky)

	// TickStyle renders delivery/seen ticks.
	TickStyle = lipgloss.NewStyle().Foreground(Muted)

	// ErrorStyle renders failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	// AdminBadgeStyle marks the prompt while elevated.
	AdminBadgeStyle = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	// SelectedStyle highlights the focused row in the admin panel.
	SelectedStyle = lipgloss.NewStyle().Background(Surface).Foreground(Phosphor)

	// UnreadStyle marks threads with unacknowledged messages.
	UnreadStyle = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	// BarStyle frames the pinned command bar.
	BarStyle = lipgloss.NewStyle().
			Foreground(PhosphorDim).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Muted)
)

// =============================================================================
// TERMINAL CAPABILITY
// =============================================================================

// ColorEnabled reports whether the terminal supports color output at all.
// Plain mode and dumb terminals fall back to unstyled text.
func ColorEnabled() bool {
	return termenv.DefaultOutput().Profile != termenv.Ascii
}
