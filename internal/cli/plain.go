// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// plain.go - line-mode front end for terminals where the full-screen console
// is unwanted. Same commands, no animation, incoming chat printed as it
// arrives.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/command"
	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/identity"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/upload"
	"github.com/abdallahelabd/bioterm/internal/util"
)

// plainOpTimeout bounds store calls issued from the REPL.
const plainOpTimeout = 15 * time.Second

// runPlain is the REPL entry point.
func runPlain(cfg *config.Config, session *chat.Session, id *identity.Resolver, up *upload.Uploader) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	// History lives next to the rest of the client state.
	histPath := ""
	if dir, err := config.Dir(); err == nil {
		histPath = filepath.Join(dir, "history")
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.OpenFile(histPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	r := &plainREPL{cfg: cfg, session: session, id: id, uploader: up, printed: map[string]bool{}}
	go r.watchIncoming()

	for _, l := range command.BootLines() {
		fmt.Println(l)
	}

	st := command.State{Admin: id.Role() == model.RoleAdmin}
	for {
		input, err := line.Prompt(r.prompt(st))
		if err != nil {
			// Ctrl+C / Ctrl+D both exit the REPL cleanly.
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if done := r.handle(input, &st); done {
			return nil
		}
	}
}

// plainREPL carries the line-mode state.
type plainREPL struct {
	cfg      *config.Config
	session  *chat.Session
	id       *identity.Resolver
	uploader *upload.Uploader

	mu      sync.Mutex
	printed map[string]bool
}

func (r *plainREPL) prompt(st command.State) string {
	who := "visitor"
	if st.Admin {
		who = "admin"
	}
	if st.Mode == command.ModeChat {
		return who + "@abdallah:chat> "
	}
	return who + "@abdallah:~$ "
}

// watchIncoming prints counterpart messages as snapshots arrive. Own lines
// are skipped; the sender already saw themselves type them.
func (r *plainREPL) watchIncoming() {
	handle := r.id.Handle()
	for u := range r.session.Updates() {
		for _, m := range u.Messages {
			if m.Author == handle {
				continue
			}
			r.mu.Lock()
			seen := r.printed[m.ID]
			if !seen {
				r.printed[m.ID] = true
			}
			r.mu.Unlock()
			if !seen {
				fmt.Printf("\n%s: %s\n", m.Author, util.StripTags(m.Body))
			}
		}
	}
}

// handle processes one input line, returning true when the REPL should end.
func (r *plainREPL) handle(input string, st *command.State) bool {
	trimmed := strings.TrimSpace(input)

	// Admin line commands that the console exposes as the panel.
	if st.Admin && st.Mode == command.ModeCommand && trimmed != "" {
		if handled := r.adminCommand(trimmed); handled {
			return false
		}
	}
	if st.Mode == command.ModeChat {
		if path, ok := strings.CutPrefix(trimmed, "/attach "); ok {
			r.attach(strings.TrimSpace(path))
			return false
		}
	}

	action := command.Interpret(input, *st)
	switch action.Kind {
	case command.ActionNone:

	case command.ActionOutput:
		for _, l := range action.Lines {
			fmt.Println(util.StripTags(l))
		}

	case command.ActionEnterChat:
		st.Mode = command.ModeChat
		printLines(action.Lines)

	case command.ActionExitChat:
		st.Mode = command.ModeCommand
		printLines(action.Lines)

	case command.ActionSend:
		ctx, cancel := context.WithTimeout(context.Background(), plainOpTimeout)
		_, err := r.session.Send(ctx, action.Message, nil)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}

	case command.ActionElevate:
		ok, err := r.id.Elevate(action.Passcode, action.OTP)
		if err != nil {
			fmt.Fprintf(os.Stderr, "elevation: %v\n", err)
		}
		if ok {
			st.Admin = true
			fmt.Println("✅ Admin mode activated! Try: threads, open <handle>, reply <handle> <text>")
		} else {
			fmt.Println("❌ Wrong passcode.")
		}

	case command.ActionLogout:
		if err := r.id.Logout(); err != nil {
			fmt.Fprintf(os.Stderr, "logout: %v\n", err)
		} else {
			st.Admin = false
			printLines(action.Lines)
		}

	case command.ActionShowCV:
		out, err := command.RenderCV(100)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cv: %v\n", err)
		} else {
			fmt.Print(out)
		}
	}
	return false
}

// adminCommand implements the panel as line commands. Returns false for
// inputs it does not recognize so they fall through to the interpreter.
func (r *plainREPL) adminCommand(trimmed string) bool {
	fields := strings.Fields(trimmed)
	ctx, cancel := context.WithTimeout(context.Background(), plainOpTimeout)
	defer cancel()

	switch fields[0] {
	case "threads", "panel":
		for _, t := range r.session.Threads() {
			marker := "  "
			if t.Unread() {
				marker = "● "
			}
			preview := ""
			if last := t.Last(); last != nil {
				preview = " — " + util.TruncateWidth(util.FirstLine(util.StripTags(last.Body)), 60)
			}
			fmt.Printf("%s%s%s\n", marker, t.Handle, preview)
		}
		return true

	case "open":
		if len(fields) < 2 {
			fmt.Println("usage: open <handle>")
			return true
		}
		handle := fields[1]
		for _, t := range r.session.Threads() {
			if t.Handle != handle {
				continue
			}
			for _, m := range t.Messages {
				fmt.Printf("[%s] %s: %s\n", m.ID, m.Author, util.StripTags(m.Body))
			}
		}
		r.session.MarkThreadSeen(handle)
		return true

	case "reply":
		if len(fields) < 3 {
			fmt.Println("usage: reply <handle> <text>")
			return true
		}
		body := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "reply"), " "+fields[1]))
		if _, err := r.session.SendReply(ctx, fields[1], body); err != nil {
			fmt.Fprintf(os.Stderr, "reply: %v\n", err)
		}
		return true

	case "delete":
		if len(fields) < 2 {
			fmt.Println("usage: delete <message-id>")
			return true
		}
		if err := r.session.DeleteMessage(ctx, fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "delete: %v\n", err)
		}
		return true

	case "clearthread":
		if len(fields) < 2 {
			fmt.Println("usage: clearthread <handle>")
			return true
		}
		if err := r.session.ClearThread(ctx, fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "clearthread: %v\n", err)
		}
		return true
	}
	return false
}

// attach stages an image for the next message in chat mode.
func (r *plainREPL) attach(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), plainOpTimeout)
	defer cancel()

	att, err := r.uploader.StageFile(ctx, path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attach: %v\n", err)
		return
	}
	// Plain mode sends the attachment as its own message immediately; there
	// is no staged state to display.
	if _, err := r.session.Send(ctx, "", att); err != nil {
		fmt.Fprintf(os.Stderr, "attach send: %v\n", err)
	} else {
		fmt.Println("📎 image sent")
	}
}

func printLines(lines []string) {
	for _, l := range lines {
		fmt.Println(util.StripTags(l))
	}
}
