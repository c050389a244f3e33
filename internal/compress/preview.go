package compress

import "github.com/mantra-hq/mantra-releases-sub000/internal/session"

type PreviewKind string

const (
	PreviewKeep    PreviewKind = "keep"
	PreviewModify  PreviewKind = "modify"
	PreviewInsert  PreviewKind = "insert"
	PreviewDeleted PreviewKind = "deleted"
)

// PreviewEntry is one row of the edited sequence.
type PreviewEntry struct {
	Kind PreviewKind
	// Index is the original position, or -1 for insertions.
	Index int
	// Gap is the gap index of an insertion; unused for other kinds.
	Gap int
	ID  string
	// Message is the original message, or the inserted one.
	Message         session.Message
	ModifiedContent string
	// TokenDelta is modified minus original tokens (negative saves).
	TokenDelta  int
	TokensSaved int
}

// Key identifies the entry for list diffing.
func (p PreviewEntry) Key() string {
	if p.Kind == PreviewInsert {
		return "insert:" + p.ID
	}
	return string(p.Kind) + ":" + p.ID
}

// Project builds the preview sequence of originals under ov. Insertions
// whose gap falls outside [-1, len(originals)-1] are not surfaced.
func Project(originals []session.Message, ov Overlay, estimate TokenEstimator, extract ContentExtractor) []PreviewEntry {
	entries := make([]PreviewEntry, 0, len(originals)+ov.InsertionCount())
	emitInsertion := func(gap int) {
		if ins, ok := ov.Insertion(gap); ok {
			entries = append(entries, PreviewEntry{
				Kind:    PreviewInsert,
				Index:   -1,
				Gap:     gap,
				ID:      ins.Message.ID,
				Message: ins.Message,
			})
		}
	}

	emitInsertion(GapBeforeFirst)
	for i, msg := range originals {
		entry := PreviewEntry{Kind: PreviewKeep, Index: i, ID: msg.ID, Message: msg}
		if op, ok := ov.Operation(msg.ID); ok {
			originalTokens := estimate(extract(msg.Content))
			switch op.Kind {
			case OpDelete:
				entry.Kind = PreviewDeleted
				entry.TokensSaved = originalTokens
			case OpModify:
				entry.Kind = PreviewModify
				entry.ModifiedContent = op.Content
				entry.TokenDelta = estimate(op.Content) - originalTokens
			}
		}
		entries = append(entries, entry)
		emitInsertion(i)
	}
	return entries
}

// Compressed drops delete placeholders, leaving the messages the
// compressed session would contain.
func Compressed(entries []PreviewEntry) []PreviewEntry {
	out := make([]PreviewEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Kind == PreviewDeleted {
			continue
		}
		out = append(out, entry)
	}
	return out
}
