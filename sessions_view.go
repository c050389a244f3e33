package main

import (
	"fmt"
	"strings"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
)

const (
	sessionPageSize = 50
	// sessionPrefetchMargin is how close the cursor may come to the last
	// loaded row before the next page is read.
	sessionPrefetchMargin = 3
)

// sessionList is the session picker of one agent. Files are discovered up
// front; rows, which need a JSONL scan and an LCM lookup, are filled in one
// page at a time as the cursor approaches the end of what is loaded.
type sessionList struct {
	agent  session.Agent
	files  []session.File
	rows   []sessionEntry
	cursor int
	lcmDB  string
}

func openSessionList(agent session.Agent, lcmDB string) (*sessionList, error) {
	files, err := session.DiscoverFiles(agent)
	if err != nil {
		return nil, err
	}
	l := &sessionList{agent: agent, files: files, lcmDB: lcmDB}
	l.loadPage()
	return l, nil
}

// reload rediscovers the agent's files and keeps the cursor where it was,
// as far as the first page allows.
func (l *sessionList) reload() error {
	files, err := session.DiscoverFiles(l.agent)
	if err != nil {
		return err
	}
	l.files = files
	l.rows = nil
	l.loadPage()
	l.cursor = clampIndex(l.cursor, len(l.rows))
	return nil
}

// loadPage appends the next page of rows and returns how many were added.
func (l *sessionList) loadPage() int {
	start := len(l.rows)
	end := min(len(l.files), start+sessionPageSize)
	if start >= end {
		return 0
	}
	l.rows = append(l.rows, describeSessions(l.files[start:end], l.lcmDB)...)
	return end - start
}

// move shifts the cursor by delta. Moving down close to the last loaded row
// reads the next page first, so the cursor can step onto it. It returns the
// number of rows loaded.
func (l *sessionList) move(delta int) int {
	loaded := 0
	if delta > 0 && len(l.rows)-(l.cursor+delta) < sessionPrefetchMargin {
		loaded = l.loadPage()
	}
	l.cursor = clampIndex(l.cursor+delta, len(l.rows))
	return loaded
}

func (l *sessionList) selected() (sessionEntry, bool) {
	if l == nil || l.cursor < 0 || l.cursor >= len(l.rows) {
		return sessionEntry{}, false
	}
	return l.rows[l.cursor], true
}

func (l *sessionList) progress() string {
	return fmt.Sprintf("showing %d of %d", len(l.rows), len(l.files))
}

func (l *sessionList) render(height int) string {
	if len(l.rows) == 0 {
		return "No session JSONL files found for this agent"
	}
	lines := make([]string, len(l.rows))
	for i, row := range l.rows {
		lines[i] = row.listLine()
	}
	return renderCursorList(lines, l.cursor, height)
}

func (e sessionEntry) listLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  msgs:%s  est:%dt", e.filename, formatTimeForList(e.updatedAt), formatMessageCount(e.messageCount), e.estimatedTokens)
	if e.conversationID > 0 {
		fmt.Fprintf(&b, "  conv_id:%d", e.conversationID)
	}
	return b.String()
}
