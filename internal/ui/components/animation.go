// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package components

import (
	"github.com/abdallahelabd/bioterm/internal/util"
)

// =============================================================================
// TYPEWRITER QUEUE
// =============================================================================

// LineState tracks one output line through its reveal lifecycle.
type LineState int

const (
	// LineQueued waits behind earlier lines.
	LineQueued LineState = iota
	// LineAnimating is being revealed character by character. At most one
	// line in the queue is ever in this state.
	LineAnimating
	// LineStatic is fully revealed and never re-animates.
	LineStatic
)

// line is one entry in the typewriter queue.
type line struct {
	runes    []rune
	revealed int
	state    LineState
	// instant lines skip the reveal and become static when promoted.
	// Markup content and pre-rendered blocks take this path.
	instant bool
}

// Queue is the FIFO typewriter: output lines reveal one character at a time,
// strictly one line at a time, in arrival order. New lines appended during
// an active animation wait their turn; finished lines stay static forever.
type Queue struct {
	lines []line
	// anim indexes the animating line, -1 when idle.
	anim int
}

// NewQueue returns an empty typewriter queue.
func NewQueue() *Queue {
	return &Queue{anim: -1}
}

// Enqueue appends output lines. Lines containing markup are not animated:
// their tags are stripped and they render whole when their turn comes, still
// in FIFO order behind earlier lines.
func (q *Queue) Enqueue(lines ...string) {
	for _, text := range lines {
		l := line{}
		if util.ContainsMarkup(text) {
			l.runes = []rune(util.StripTags(text))
			l.instant = true
		} else {
			l.runes = []rune(text)
		}
		q.lines = append(q.lines, l)
	}
	q.promote()
}

// EnqueueStatic appends pre-rendered lines that display whole, bypassing the
// reveal but not the ordering.
func (q *Queue) EnqueueStatic(lines ...string) {
	for _, text := range lines {
		q.lines = append(q.lines, line{runes: []rune(text), instant: true})
	}
	q.promote()
}

// Animating reports whether a reveal is in progress. The console schedules
// ticks only while this is true, which keeps a single tick loop alive no
// matter how many lines were enqueued meanwhile.
func (q *Queue) Animating() bool {
	return q.anim >= 0
}

// Advance reveals one character of the animating line, completing it and
// promoting the next queued line when it finishes. No-op while idle.
func (q *Queue) Advance() {
	if q.anim < 0 {
		return
	}
	l := &q.lines[q.anim]
	l.revealed++
	if l.revealed >= len(l.runes) {
		l.revealed = len(l.runes)
		l.state = LineStatic
		q.anim = -1
		q.promote()
	}
}

// Flush completes every pending line instantly.
func (q *Queue) Flush() {
	for i := range q.lines {
		q.lines[i].revealed = len(q.lines[i].runes)
		q.lines[i].state = LineStatic
	}
	q.anim = -1
}

// promote makes queued instant lines static and starts the next animatable
// line, if any. Only runs while no line is animating.
func (q *Queue) promote() {
	if q.anim >= 0 {
		return
	}
	for i := range q.lines {
		if q.lines[i].state != LineQueued {
			continue
		}
		if q.lines[i].instant {
			q.lines[i].revealed = len(q.lines[i].runes)
			q.lines[i].state = LineStatic
			continue
		}
		q.lines[i].state = LineAnimating
		q.anim = i
		return
	}
}

// View returns the currently visible text: static lines whole, the animating
// line cut at its reveal point, queued lines omitted.
func (q *Queue) View() []string {
	out := make([]string, 0, len(q.lines))
	for i := range q.lines {
		l := &q.lines[i]
		switch l.state {
		case LineStatic:
			out = append(out, string(l.runes))
		case LineAnimating:
			out = append(out, string(l.runes[:l.revealed]))
		}
	}
	return out
}

// Len returns the total number of lines held, visible or pending.
func (q *Queue) Len() int {
	return len(q.lines)
}
