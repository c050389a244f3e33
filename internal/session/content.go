package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentBlock supports the JSONL message content block format.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// TextBlocks wraps plain text as a single text block.
func TextBlocks(text string) []ContentBlock {
	return []ContentBlock{{Type: "text", Text: text}}
}

// ParseContent decodes a message content payload, which is either a bare
// string or an array of blocks. Anything else becomes one text block
// holding the raw JSON.
func ParseContent(raw json.RawMessage) []ContentBlock {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return TextBlocks(asString)
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}

	var asAny any
	if err := json.Unmarshal(raw, &asAny); err == nil {
		return TextBlocks(strings.TrimSpace(fmt.Sprintf("%v", asAny)))
	}
	return TextBlocks(strings.TrimSpace(string(raw)))
}

// DisplayContent flattens every block kind (text, thinking, tool calls,
// tool results) into one display string, so that all content contributes
// to token accounting.
func DisplayContent(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		part := formatBlock(block)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func formatBlock(block ContentBlock) string {
	switch block.Type {
	case "text":
		return strings.TrimSpace(block.Text)
	case "thinking", "reasoning":
		if strings.TrimSpace(block.Text) != "" {
			return "[thinking] " + strings.TrimSpace(block.Text)
		}
		if strings.TrimSpace(block.Reasoning) != "" {
			return "[thinking] " + strings.TrimSpace(block.Reasoning)
		}
		return "[thinking]"
	case "toolCall", "tool_use":
		name := strings.TrimSpace(block.Name)
		if name == "" {
			name = "unknown"
		}
		args := strings.TrimSpace(string(block.Arguments))
		if args == "" || args == "null" {
			return fmt.Sprintf("[toolCall] %s", name)
		}
		return fmt.Sprintf("[toolCall] %s %s", name, args)
	case "toolResult", "tool_result":
		if strings.TrimSpace(block.Text) != "" {
			return "[toolResult] " + strings.TrimSpace(block.Text)
		}
		if nested := DisplayContent(ParseContent(block.Content)); nested != "" {
			return "[toolResult] " + nested
		}
		return "[toolResult]"
	default:
		if strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text)
		}
		if nested := DisplayContent(ParseContent(block.Content)); nested != "" {
			return nested
		}
		if block.Type != "" {
			return "[" + block.Type + "]"
		}
		return ""
	}
}

// NewInsertedMessage builds a synthetic message for a compression insertion.
func NewInsertedMessage(role, text string, now time.Time) Message {
	role = strings.TrimSpace(role)
	if role == "" {
		role = "user"
	}
	return Message{
		ID:        "inserted-" + uuid.NewString(),
		Role:      role,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Content:   TextBlocks(text),
	}
}

const maxDisplayBytes = 100_000 // truncate very long text content for display

// Sanitize strips non-printable characters that corrupt terminal output.
// If more than 10% of the content is non-printable, it's treated as binary and replaced
// with a placeholder showing the byte count. Very long text is truncated.
func Sanitize(s string) string {
	if len(s) == 0 {
		return s
	}
	nonPrintable := 0
	total := 0
	for _, r := range s {
		total++
		if !printable(r) {
			nonPrintable++
		}
	}
	if total > 0 && nonPrintable*10 > total {
		return fmt.Sprintf("[binary content, %s]", FormatByteSize(int64(len(s))))
	}

	fullSize := len(s)
	truncated := false
	if len(s) > maxDisplayBytes {
		// Truncate at a rune boundary
		for i := range s {
			if i >= maxDisplayBytes {
				s = s[:i]
				truncated = true
				break
			}
		}
	}

	result := s
	if nonPrintable > 0 {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if printable(r) {
				b.WriteRune(r)
			}
		}
		result = b.String()
	}
	if truncated {
		result += fmt.Sprintf("\n\n[truncated, full content is %s]", FormatByteSize(int64(fullSize)))
	}
	return result
}

func printable(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r != 127 && !(r >= 0x80 && r <= 0x9F)
}

func FormatByteSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
