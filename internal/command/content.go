// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package command

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// STATIC CONTENT BLOCKS
// =============================================================================

// BootLines are the banner shown before the first prompt.
func BootLines() []string {
	return []string{
		"Abdallah Elabd 💚",
		"Twitter: @abdallahelabd05",
	}
}

// HelloLines is the greeting block.
func HelloLines() []string {
	return []string{"Hello, Welcome to my humble site! 👋"}
}

// ExperienceLines is the experience block.
func ExperienceLines() []string {
	return []string{
		"→ Worked as a freelancing programmer since 2020.",
		"→ Launched more than 5 startups in 3 different fields.",
		"→ Gained many experiences in fields like designing, blockchain and marketing.",
	}
}

// SkillsLines is the skills block.
func SkillsLines() []string {
	return []string{
		"🧠 Programming:",
		"• Python • C++ • HTML • JS • CSS • Solidity",
		"🎨 Designing:",
		"• Photoshop • Illustrator • Figma • Adobe Premiere",
		"📣 Marketing:",
		"• Facebook • Twitter • Google Ads",
	}
}

// cvMarkdown is the CV source rendered by the cv command.
const cvMarkdown = `# Abdallah Elabd

**Freelance programmer & founder** — Egypt

## Experience

- **Freelance programming** (2020–present): web apps, bots, automation.
- **Startups**: launched 5+ ventures across software, design and marketing.
- **Blockchain**: Solidity contracts and dapp frontends.

## Skills

| Area        | Tools                                          |
|-------------|------------------------------------------------|
| Programming | Python, C++, HTML, JS, CSS, Solidity           |
| Design      | Photoshop, Illustrator, Figma, Adobe Premiere  |
| Marketing   | Facebook, Twitter, Google Ads                  |

## Contact

Twitter [@abdallahelabd05](https://twitter.com/abdallahelabd05)
`

// RenderCV renders the CV markdown for a terminal of the given width. The
// result is pre-styled text and is displayed whole, not animated.
func RenderCV(width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build CV renderer: %w", err)
	}
	out, err := r.Render(cvMarkdown)
	if err != nil {
		return "", fmt.Errorf("failed to render CV: %w", err)
	}
	return out, nil
}
