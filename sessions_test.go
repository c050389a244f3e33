package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
)

func TestDescribeSessionsIncludesEstimatedTokens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "session-1.jsonl")
	content := `{"type":"message","id":"1","message":{"role":"user","content":"hello"}}` + "\n" +
		`{"type":"message","id":"2","message":{"role":"assistant","content":"world"}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write session file: %v", err)
	}

	files := []session.File{
		{
			Filename:  "session-1.jsonl",
			Path:      path,
			UpdatedAt: time.Unix(1700000000, 0),
			ByteSize:  int64(len(content)),
		},
	}

	rows := describeSessions(files, filepath.Join(dir, "missing.db"))
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].estimatedTokens != len(content)/4 {
		t.Fatalf("expected estimated tokens %d, got %d", len(content)/4, rows[0].estimatedTokens)
	}
	if rows[0].messageCount != 2 {
		t.Fatalf("expected 2 messages, got %d", rows[0].messageCount)
	}
	if rows[0].id != "session-1" || rows[0].conversationID != 0 {
		t.Fatalf("unexpected session identity: %+v", rows[0])
	}
}

func TestDescribeSessionsUnreadableFile(t *testing.T) {
	t.Parallel()

	files := []session.File{{Filename: "a.jsonl", Path: filepath.Join(t.TempDir(), "a.jsonl")}}
	rows := describeSessions(files, filepath.Join(t.TempDir(), "missing.db"))
	if len(rows) != 1 || rows[0].messageCount != -1 {
		t.Fatalf("expected unreadable files to report unknown count, got %+v", rows)
	}
	if formatMessageCount(rows[0].messageCount) != "?" {
		t.Fatalf("expected ? for unknown count")
	}
}

// writeAgentSessions creates an agent directory holding n one-message
// session files, newest last.
func writeAgentSessions(t *testing.T, n int) session.Agent {
	t.Helper()

	agent := session.Agent{Name: "main", Path: t.TempDir()}
	dir := filepath.Join(agent.Path, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir sessions: %v", err)
	}
	base := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("s%03d.jsonl", i))
		line := `{"type":"message","id":"m","message":{"role":"user","content":"hi"}}` + "\n"
		if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
			t.Fatalf("write session: %v", err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	return agent
}

func TestSessionListLoadsNextPageNearTheEnd(t *testing.T) {
	t.Parallel()

	agent := writeAgentSessions(t, sessionPageSize+5)
	list, err := openSessionList(agent, filepath.Join(t.TempDir(), "missing.db"))
	if err != nil {
		t.Fatalf("open session list: %v", err)
	}
	if len(list.rows) != sessionPageSize || len(list.files) != sessionPageSize+5 {
		t.Fatalf("first page = %d rows of %d files", len(list.rows), len(list.files))
	}
	if list.rows[0].filename != fmt.Sprintf("s%03d.jsonl", sessionPageSize+4) {
		t.Fatalf("expected newest session first, got %s", list.rows[0].filename)
	}

	loaded := 0
	for i := 0; i < sessionPageSize-1; i++ {
		loaded += list.move(1)
	}
	if loaded != 5 || len(list.rows) != sessionPageSize+5 {
		t.Fatalf("expected the second page to load, loaded %d, rows %d", loaded, len(list.rows))
	}
	if list.cursor != sessionPageSize-1 {
		t.Fatalf("cursor = %d, want %d", list.cursor, sessionPageSize-1)
	}

	for i := 0; i < 10; i++ {
		list.move(1)
	}
	if list.cursor != len(list.rows)-1 {
		t.Fatalf("cursor should stop at the last row, got %d", list.cursor)
	}
	list.move(-100)
	if entry, ok := list.selected(); !ok || list.cursor != 0 || entry.messageCount != 1 {
		t.Fatalf("unexpected first selection %+v (cursor %d)", entry, list.cursor)
	}
}

func TestSessionListReloadKeepsCursor(t *testing.T) {
	t.Parallel()

	agent := writeAgentSessions(t, 3)
	list, err := openSessionList(agent, filepath.Join(t.TempDir(), "missing.db"))
	if err != nil {
		t.Fatalf("open session list: %v", err)
	}
	list.move(2)
	if err := os.Remove(filepath.Join(agent.Path, "sessions", "s000.jsonl")); err != nil {
		t.Fatalf("remove session: %v", err)
	}
	if err := list.reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(list.rows) != 2 || list.cursor != 1 {
		t.Fatalf("after reload rows=%d cursor=%d, want 2 and 1", len(list.rows), list.cursor)
	}
}

func TestRenderSessionsShowsEstimatedTokens(t *testing.T) {
	t.Parallel()

	list := &sessionList{
		rows: []sessionEntry{
			{
				filename:        "session-1.jsonl",
				updatedAt:       time.Unix(1700000000, 0),
				messageCount:    2,
				estimatedTokens: 123,
				conversationID:  9,
			},
		},
	}
	m := model{screen: screenSessions, sessions: list, width: 80, height: 10}

	rendered := m.renderBody()
	if !strings.Contains(rendered, "est:123t") {
		t.Fatalf("expected estimated token label in rendered sessions, got: %q", rendered)
	}
	if !strings.Contains(rendered, "conv_id:9") {
		t.Fatalf("expected conversation id in rendered sessions, got: %q", rendered)
	}
	if status := m.renderStatus(); status != "showing 1 of 0" {
		t.Fatalf("renderStatus() = %q", status)
	}
}

func TestVisibleWindowKeepsCursorCentered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cursor, total, height int
		start, end            int
	}{
		{0, 3, 10, 0, 3},
		{0, 20, 5, 0, 5},
		{10, 20, 5, 8, 13},
		{19, 20, 5, 15, 20},
		{0, 0, 5, 0, 0},
	}
	for _, tc := range tests {
		start, end := visibleWindow(tc.cursor, tc.total, tc.height)
		if start != tc.start || end != tc.end {
			t.Errorf("visibleWindow(%d, %d, %d) = [%d, %d), want [%d, %d)", tc.cursor, tc.total, tc.height, start, end, tc.start, tc.end)
		}
	}
}

func TestRenderConversationTextFlattensContent(t *testing.T) {
	t.Parallel()

	messages := []session.Message{
		{ID: "1", Role: "user", Content: session.TextBlocks("please read the file")},
		{ID: "2", Role: "assistant", Content: []session.ContentBlock{{Type: "toolCall", Name: "read"}}},
		{ID: "3", Role: "assistant"},
	}
	rendered := renderConversationText(messages, 80)
	for _, want := range []string{"USER", "please read the file", "[toolCall] read", "(no text content)"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in rendered conversation, got: %q", want, rendered)
		}
	}
}

func TestTruncateStringIsRuneSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "short", 10, "short"},
		{"ellipsis", "abcdefghij", 6, "abc..."},
		{"tiny", "abcdef", 2, "ab"},
		{"zero", "abc", 0, ""},
		{"multibyte", "héllo wörld", 7, "héll..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncateString(tc.text, tc.width); got != tc.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tc.text, tc.width, got, tc.want)
			}
		})
	}
}
