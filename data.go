package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
	"github.com/mantra-hq/mantra-releases-sub000/internal/tokens"
)

const listTimeLayout = "2006-01-02 15:04:05"

// sessionEntry describes one JSONL session file in the session list.
type sessionEntry struct {
	id              string
	filename        string
	path            string
	updatedAt       time.Time
	conversationID  int64
	messageCount    int
	estimatedTokens int
}

// describeSessions builds list rows for files and resolves their LCM
// conversation ids in one query. A file that cannot be scanned reports a
// message count of -1.
func describeSessions(files []session.File, lcmDBPath string) []sessionEntry {
	rows := make([]sessionEntry, len(files))
	ids := make([]string, len(files))
	for i, file := range files {
		count, err := session.CountMessages(file.Path)
		if err != nil {
			count = -1
		}
		ids[i] = file.ID()
		rows[i] = sessionEntry{
			id:              ids[i],
			filename:        file.Filename,
			path:            file.Path,
			updatedAt:       file.UpdatedAt,
			messageCount:    count,
			estimatedTokens: tokens.EstimateFromBytes(file.ByteSize),
		}
	}

	conversations := session.LoadConversationIDs(context.Background(), lcmDBPath, ids)
	for i := range rows {
		rows[i].conversationID = conversations[rows[i].id]
	}
	return rows
}

// loadLCMConversation reads the stored LCM copy of a session.
func loadLCMConversation(dbPath string, conversationID int64) ([]session.Message, error) {
	db, err := session.OpenLCMDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return session.LoadConversation(context.Background(), db, conversationID)
}

func formatTimeForList(ts time.Time) string {
	return ts.Local().Format(listTimeLayout)
}

// formatTimestamp renders a message timestamp in local time. RFC 3339 values
// carry their own zone and bare SQLite datetimes are UTC. Anything else is
// shown as stored.
func formatTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return formatTimeForList(parsed)
	}
	if parsed, err := time.ParseInLocation(listTimeLayout, ts, time.UTC); err == nil {
		return formatTimeForList(parsed)
	}
	return ts
}

func formatMessageCount(count int) string {
	if count < 0 {
		return "?"
	}
	return strconv.Itoa(count)
}
