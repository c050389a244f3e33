package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mantra-hq/mantra-releases-sub000/internal/compress"
	"github.com/mantra-hq/mantra-releases-sub000/internal/config"
	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
	"github.com/mantra-hq/mantra-releases-sub000/internal/tokens"
)

type statsOptions struct {
	sessionPath    string
	dbPath         string
	conversationID int64
	sessionID      string
	deleteIDs      []string
	dropRoles      []string
	charsPerToken  float64
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty value")
	}
	*s = append(*s, value)
	return nil
}

func runStatsCommand(args []string, out io.Writer) error {
	opts, err := parseStatsArgs(args)
	if err != nil {
		return err
	}

	messages, source, err := loadStatsMessages(opts)
	if err != nil {
		return err
	}

	counter := tokens.NewCounter(opts.charsPerToken)
	editor := compress.NewEditor(compress.Config{HistoryLimit: -1, Estimate: counter.Estimate})
	if err := applyStatsEdits(editor, messages, opts); err != nil {
		return err
	}

	writeStatsReport(out, source, len(messages), editor.PreviewMessages(messages), editor.Stats(messages))
	return nil
}

func loadStatsMessages(opts statsOptions) ([]session.Message, string, error) {
	if opts.sessionPath != "" {
		messages, err := session.ParseFile(opts.sessionPath)
		if err != nil {
			return nil, "", err
		}
		return messages, opts.sessionPath, nil
	}
	if opts.sessionID != "" {
		return loadStatsSessionConversation(opts.dbPath, opts.sessionID)
	}
	messages, err := loadLCMConversation(opts.dbPath, opts.conversationID)
	if err != nil {
		return nil, "", err
	}
	return messages, fmt.Sprintf("%s conv_id:%d", opts.dbPath, opts.conversationID), nil
}

// loadStatsSessionConversation loads the newest LCM conversation recorded for
// a session ID.
func loadStatsSessionConversation(dbPath, sessionID string) ([]session.Message, string, error) {
	db, err := session.OpenLCMDB(dbPath)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	ctx := context.Background()
	conversationID, err := session.LookupConversationID(ctx, db, sessionID)
	if err != nil {
		return nil, "", err
	}
	messages, err := session.LoadConversation(ctx, db, conversationID)
	if err != nil {
		return nil, "", err
	}
	return messages, fmt.Sprintf("%s session:%s conv_id:%d", dbPath, sessionID, conversationID), nil
}

// applyStatsEdits marks every --delete id and every message of a --drop-role
// role as deleted. Unknown ids are an error.
func applyStatsEdits(editor *compress.Editor, messages []session.Message, opts statsOptions) error {
	byID := make(map[string]session.Message, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
	}
	for _, id := range opts.deleteIDs {
		msg, ok := byID[id]
		if !ok {
			return fmt.Errorf("message %q not found", id)
		}
		if err := editor.SetOperation(id, compress.Delete(msg)); err != nil {
			return fmt.Errorf("delete message %q: %w", id, err)
		}
	}
	if len(opts.dropRoles) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(opts.dropRoles))
	for _, role := range opts.dropRoles {
		drop[strings.ToLower(role)] = true
	}
	for _, msg := range messages {
		if !drop[strings.ToLower(msg.Role)] {
			continue
		}
		if err := editor.SetOperation(msg.ID, compress.Delete(msg)); err != nil {
			return fmt.Errorf("delete message %q: %w", msg.ID, err)
		}
	}
	return nil
}

func writeStatsReport(out io.Writer, source string, originalCount int, entries []compress.PreviewEntry, st compress.Stats) {
	fmt.Fprintf(out, "Session: %s\n", source)
	for _, entry := range entries {
		if entry.Kind == compress.PreviewKeep {
			continue
		}
		preview := truncateString(oneLine(session.DisplayContent(entry.Message.Content)), 60)
		switch entry.Kind {
		case compress.PreviewDeleted:
			fmt.Fprintf(out, "  - #%d %s %s (-%dt) %s\n", entry.Index, entry.ID, strings.ToUpper(entry.Message.Role), entry.TokensSaved, preview)
		case compress.PreviewModify:
			fmt.Fprintf(out, "  ~ #%d %s %s (%+dt) %s\n", entry.Index, entry.ID, strings.ToUpper(entry.Message.Role), entry.TokenDelta, preview)
		case compress.PreviewInsert:
			fmt.Fprintf(out, "  + gap %d %s %s %s\n", entry.Gap, entry.ID, strings.ToUpper(entry.Message.Role), preview)
		}
	}
	fmt.Fprintf(out, "Messages: %d -> %d\n", originalCount, len(compress.Compressed(entries)))
	fmt.Fprintf(out, "Tokens: %d -> %d (saved %d, %.1f%%)\n", st.OriginalTotal, st.CompressedTotal, st.SavedTokens, st.SavedPercentage)
	fmt.Fprintf(out, "Changes: deleted=%d modified=%d inserted=%d\n", st.Changes.Deleted, st.Changes.Modified, st.Changes.Inserted)
}

func parseStatsArgs(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var deleteIDs, dropRoles stringList
	dbPath := fs.String("db", "", "LCM SQLite database path")
	conversation := fs.String("conversation", "", "LCM conversation ID (with --db)")
	sessionID := fs.String("session-id", "", "resolve the newest LCM conversation of this session (with --db)")
	charsPerToken := fs.Float64("chars-per-token", 0, "characters per estimated token")
	fs.Var(&deleteIDs, "delete", "message ID to delete (repeatable)")
	fs.Var(&dropRoles, "drop-role", "delete every message with this role (repeatable)")

	normalized, err := normalizeStatsArgs(args)
	if err != nil {
		return statsOptions{}, fmt.Errorf("%w\n%s", err, statsUsageText())
	}
	if err := fs.Parse(normalized); err != nil {
		return statsOptions{}, fmt.Errorf("%w\n%s", err, statsUsageText())
	}

	opts := statsOptions{
		dbPath:        strings.TrimSpace(*dbPath),
		deleteIDs:     deleteIDs,
		dropRoles:     dropRoles,
		charsPerToken: *charsPerToken,
	}
	if opts.charsPerToken == 0 {
		opts.charsPerToken = statsDefaultCharsPerToken()
	}
	if opts.charsPerToken < 0 {
		return statsOptions{}, fmt.Errorf("--chars-per-token must be positive\n%s", statsUsageText())
	}

	switch {
	case fs.NArg() == 1 && opts.dbPath == "":
		opts.sessionPath = fs.Arg(0)
	case fs.NArg() == 0 && opts.dbPath != "":
		opts.sessionID = strings.TrimSpace(*sessionID)
		hasConversation := strings.TrimSpace(*conversation) != ""
		if hasConversation == (opts.sessionID != "") {
			return statsOptions{}, fmt.Errorf("exactly one of --conversation or --session-id is required with --db\n%s", statsUsageText())
		}
		if opts.sessionID != "" {
			break
		}
		id, err := strconv.ParseInt(strings.TrimSpace(*conversation), 10, 64)
		if err != nil {
			return statsOptions{}, fmt.Errorf("parse conversation ID %q: %w\n%s", *conversation, err, statsUsageText())
		}
		opts.conversationID = id
	default:
		return statsOptions{}, fmt.Errorf("either a session JSONL path or --db with --conversation or --session-id is required\n%s", statsUsageText())
	}
	return opts, nil
}

// statsDefaultCharsPerToken reads the configured ratio, falling back to the
// built-in default when no config can be loaded.
func statsDefaultCharsPerToken() float64 {
	dataDir, err := config.DefaultDataDir()
	if err != nil {
		return tokens.DefaultCharsPerToken
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return tokens.DefaultCharsPerToken
	}
	return cfg.Compression.CharsPerToken
}

func normalizeStatsArgs(args []string) ([]string, error) {
	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, 1)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--db" || arg == "--conversation" || arg == "--session-id" || arg == "--delete" || arg == "--drop-role" || arg == "--chars-per-token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			flags = append(flags, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--"):
			flags = append(flags, arg)
		default:
			positionals = append(positionals, arg)
		}
	}
	return append(flags, positionals...), nil
}

func statsUsageText() string {
	return strings.TrimSpace(`
Usage:
  mantra-tui stats <session.jsonl> [--delete <id>]... [--drop-role <role>]... [--chars-per-token <n>]
  mantra-tui stats --db <lcm.db> --conversation <id> [flags]
  mantra-tui stats --db <lcm.db> --session-id <id> [flags]

Preview a compression of a session without modifying it. Prints the
affected messages and the token statistics of the compressed result.

Flags:
  --delete <id>           Delete the message with this ID (repeatable)
  --drop-role <role>      Delete every message with this role (repeatable)
  --chars-per-token <n>   Token estimate ratio (default from config, 4)
  --db <path>             Load from an LCM SQLite database instead of JSONL
  --conversation <id>     LCM conversation ID (with --db)
  --session-id <id>       Use the newest LCM conversation of this session (with --db)
`)
}
