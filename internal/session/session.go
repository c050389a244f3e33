package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Message is one original chat message of a recorded session.
type Message struct {
	ID        string
	ParentID  string
	Role      string
	Timestamp string
	Content   []ContentBlock
}

// Agent describes one agent directory under the agents root.
type Agent struct {
	Name string
	Path string
}

// File stores lightweight metadata about one JSONL session file.
type File struct {
	Filename  string
	Path      string
	UpdatedAt time.Time
	ByteSize  int64
}

// ID returns the session identifier derived from the filename.
func (f File) ID() string {
	return strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename))
}

// sessionLine is the top-level JSON object in each JSONL row.
type sessionLine struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	ParentID  string          `json:"parentId"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// lineMessage is the nested message payload within a session line.
type lineMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp any             `json:"timestamp"`
}

const (
	scanBufferSize    = 64 * 1024
	maxScanTokenBytes = 16 * 1024 * 1024
)

func LoadAgents(agentsDir string) ([]Agent, error) {
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil, fmt.Errorf("read agents dir %q: %w", agentsDir, err)
	}

	agents := make([]Agent, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agents = append(agents, Agent{
			Name: entry.Name(),
			Path: filepath.Join(agentsDir, entry.Name()),
		})
	}

	sort.Slice(agents, func(i, j int) bool {
		return strings.ToLower(agents[i].Name) < strings.ToLower(agents[j].Name)
	})
	return agents, nil
}

// DiscoverFiles lists an agent's session files, newest first.
func DiscoverFiles(agent Agent) ([]File, error) {
	sessionsDir := filepath.Join(agent.Path, "sessions")
	paths, err := filepath.Glob(filepath.Join(sessionsDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("glob sessions for agent %q: %w", agent.Name, err)
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, File{
			Filename:  filepath.Base(path),
			Path:      path,
			UpdatedAt: info.ModTime(),
			ByteSize:  info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].UpdatedAt.After(files[j].UpdatedAt)
	})
	return files, nil
}

func CountMessages(path string) (int, error) {
	count := 0
	err := scanLines(path, func(_ int, item sessionLine) {
		if item.Type == "message" {
			count++
		}
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ParseFile reads every message row of a JSONL session file in order.
// Malformed rows and non-message rows are skipped. Message IDs are unique
// within the result: a row without an id, or repeating an id already seen,
// is identified as "line-<n>" by its 1-based line number.
func ParseFile(path string) ([]Message, error) {
	messages := make([]Message, 0, 256)
	seen := make(map[string]bool)
	err := scanLines(path, func(lineNo int, item sessionLine) {
		if item.Type != "message" {
			return
		}
		var msg lineMessage
		if err := json.Unmarshal(item.Message, &msg); err != nil {
			return
		}
		role := msg.Role
		if role == "" {
			role = "unknown"
		}
		id := strings.TrimSpace(item.ID)
		if id == "" || seen[id] {
			id = lineID(lineNo, seen)
		}
		seen[id] = true
		messages = append(messages, Message{
			ID:        id,
			ParentID:  item.ParentID,
			Timestamp: pickTimestamp(item.Timestamp, msg.Timestamp),
			Role:      role,
			Content:   ParseContent(msg.Content),
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// lineID derives an id from the line number, suffixed if a row already
// claimed it explicitly.
func lineID(lineNo int, seen map[string]bool) string {
	id := "line-" + strconv.Itoa(lineNo)
	for n := 2; seen[id]; n++ {
		id = fmt.Sprintf("line-%d.%d", lineNo, n)
	}
	return id
}

// scanLines decodes each JSON row and passes it with its 1-based line number.
func scanLines(path string, visit func(lineNo int, item sessionLine)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session %q: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, scanBufferSize)
	scanner.Buffer(buf, maxScanTokenBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item sessionLine
		if err := json.Unmarshal(line, &item); err != nil {
			continue
		}
		visit(lineNo, item)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan session %q: %w", path, err)
	}
	return nil
}

func pickTimestamp(primary string, fallback any) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	switch v := fallback.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; the source uses epoch milliseconds.
		ms := int64(v)
		if ms <= 0 {
			return ""
		}
		return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}
