// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package components

import (
	"strings"

	"github.com/abdallahelabd/bioterm/internal/ui/styles"
)

// =============================================================================
// PINNED COMMAND BAR
// =============================================================================

// commandHints lists the commands surfaced in the pinned bar, in display
// order. Context-dependent entries are filtered in RenderCommandBar.
var commandHints = []string{"hello", "experience", "skills", "cv", "chat", "admin"}

// chatHints replace the command list while chatting.
var chatHints = []string{"exit"}

// RenderCommandBar renders the always-visible command reminder shown under
// the input line, mirroring the pinned hint row of the site.
func RenderCommandBar(width int, chatting, admin bool) string {
	hints := commandHints
	if chatting {
		hints = chatHints
	} else if admin {
		hints = append(append([]string{}, commandHints...), "logout", "panel")
	}

	bar := "commands: " + strings.Join(hints, " · ")
	if admin && !chatting {
		bar = styles.AdminBadgeStyle.Render("[admin] ") + bar
	}
	return styles.BarStyle.Width(max(width, len(bar))).Render(bar)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
