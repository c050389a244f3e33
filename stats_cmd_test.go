package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
)

func writeStatsSession(t *testing.T) string {
	t.Helper()

	content := strings.Join([]string{
		`{"type":"message","id":"a","message":{"role":"user","content":"12345678"}}`,
		`{"type":"message","id":"b","message":{"role":"toolResult","content":"1234567890123456"}}`,
		`{"type":"message","id":"c","message":{"role":"assistant","content":"1234"}}`,
	}, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write session file: %v", err)
	}
	return path
}

func TestRunStatsCommandDeleteAndDropRole(t *testing.T) {
	t.Parallel()

	path := writeStatsSession(t)
	var out bytes.Buffer
	args := []string{path, "--delete", "c", "--drop-role", "toolResult", "--chars-per-token", "4"}
	if err := runStatsCommand(args, &out); err != nil {
		t.Fatalf("run stats: %v", err)
	}

	report := out.String()
	for _, want := range []string{
		"- #1 b TOOLRESULT (-4t)",
		"- #2 c ASSISTANT (-1t)",
		"Messages: 3 -> 1",
		"Tokens: 7 -> 2 (saved 5, 71.4%)",
		"Changes: deleted=2 modified=0 inserted=0",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}

func TestRunStatsCommandDeletesOneOfManyUnnamedMessages(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		`{"type":"message","message":{"role":"user","content":"aaaaaaaaaaaa"}}`,
		`{"type":"message","message":{"role":"user","content":"bbbbbbbbbbbb"}}`,
		`{"type":"message","message":{"role":"user","content":"cccccccccccc"}}`,
	}, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "unnamed.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write session file: %v", err)
	}

	var out bytes.Buffer
	if err := runStatsCommand([]string{path, "--delete", "line-1", "--chars-per-token", "4"}, &out); err != nil {
		t.Fatalf("run stats: %v", err)
	}
	report := out.String()
	for _, want := range []string{
		"Messages: 3 -> 2",
		"Tokens: 9 -> 6 (saved 3, 33.3%)",
		"Changes: deleted=1 modified=0 inserted=0",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
	if strings.Count(report, "  - #") != 1 {
		t.Fatalf("expected exactly one deleted row:\n%s", report)
	}
}

func TestRunStatsCommandUnknownMessage(t *testing.T) {
	t.Parallel()

	path := writeStatsSession(t)
	err := runStatsCommand([]string{"--delete", "zz", path, "--chars-per-token", "4"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), `message "zz" not found`) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRunStatsCommandFromLCM(t *testing.T) {
	t.Parallel()

	dbPath := setupConversationTestDB(t)
	seedConversation(t, dbPath, 5, "sess-5", []string{"abcd", "abcdabcd"})

	var out bytes.Buffer
	if err := runStatsCommand([]string{"--db", dbPath, "--conversation", "5", "--delete", "1", "--chars-per-token", "4"}, &out); err != nil {
		t.Fatalf("run stats: %v", err)
	}
	if !strings.Contains(out.String(), "Tokens: 3 -> 1 (saved 2, 66.7%)") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

func TestRunStatsCommandResolvesSessionID(t *testing.T) {
	t.Parallel()

	dbPath := setupConversationTestDB(t)
	seedConversation(t, dbPath, 5, "sess-5", []string{"abcd"})
	seedConversation(t, dbPath, 6, "sess-5", []string{"abcd", "abcdabcd"})

	var out bytes.Buffer
	if err := runStatsCommand([]string{"--db", dbPath, "--session-id", "sess-5", "--delete", "2", "--chars-per-token", "4"}, &out); err != nil {
		t.Fatalf("run stats: %v", err)
	}
	report := out.String()
	for _, want := range []string{"session:sess-5 conv_id:6", "Messages: 2 -> 1", "Tokens: 3 -> 1 (saved 2, 66.7%)"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}

	err := runStatsCommand([]string{"--db", dbPath, "--session-id", "nope", "--chars-per-token", "4"}, &bytes.Buffer{})
	if !errors.Is(err, session.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestParseStatsArgsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"--chars-per-token", "4"}, "is required"},
		{"db without conversation", []string{"--db", "x.db", "--chars-per-token", "4"}, "exactly one of --conversation or --session-id"},
		{"conversation and session id", []string{"--db", "x.db", "--conversation", "1", "--session-id", "s", "--chars-per-token", "4"}, "exactly one of --conversation or --session-id"},
		{"bad conversation", []string{"--db", "x.db", "--conversation", "abc", "--chars-per-token", "4"}, "parse conversation ID"},
		{"missing value", []string{"s.jsonl", "--delete"}, "missing value for --delete"},
		{"negative ratio", []string{"s.jsonl", "--chars-per-token", "-2"}, "must be positive"},
		{"both inputs", []string{"s.jsonl", "--db", "x.db", "--chars-per-token", "4"}, "is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseStatsArgs(tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("parseStatsArgs(%v) error = %v, want %q", tc.args, err, tc.want)
			}
			if !strings.Contains(err.Error(), "Usage:") {
				t.Fatalf("expected usage text in error")
			}
		})
	}
}

func TestParseStatsArgsAcceptsFlagsAfterPositional(t *testing.T) {
	t.Parallel()

	opts, err := parseStatsArgs([]string{"s.jsonl", "--delete", "a", "--delete=b", "--drop-role", "tool", "--chars-per-token", "3"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.sessionPath != "s.jsonl" || len(opts.deleteIDs) != 2 || opts.deleteIDs[1] != "b" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if len(opts.dropRoles) != 1 || opts.charsPerToken != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
