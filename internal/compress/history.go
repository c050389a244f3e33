package compress

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
	"github.com/mantra-hq/mantra-releases-sub000/internal/tokens"
)

// TokenEstimator returns the approximate token count of text.
type TokenEstimator func(text string) int

// ContentExtractor flattens a message's content blocks into display text.
type ContentExtractor func(blocks []session.ContentBlock) string

// DefaultHistoryLimit bounds the undo stack when Config leaves it unset.
const DefaultHistoryLimit = 200

type Config struct {
	// HistoryLimit caps the number of undo snapshots. When exceeded the
	// oldest snapshot is dropped. Zero means DefaultHistoryLimit, a
	// negative value means unbounded.
	HistoryLimit int
	Estimate     TokenEstimator
	Extract      ContentExtractor
	Logger       *zap.Logger
}

// Editor is the edit state of one session in compression mode. It is
// created when the session enters compression mode and dropped on exit.
// All methods are meant to be called from a single goroutine.
type Editor struct {
	past    []Overlay
	current Overlay
	future  []Overlay

	limit   int
	estim   TokenEstimator
	extract ContentExtractor
	log     *zap.Logger
}

func NewEditor(cfg Config) *Editor {
	e := &Editor{
		limit:   cfg.HistoryLimit,
		estim:   cfg.Estimate,
		extract: cfg.Extract,
		log:     cfg.Logger,
	}
	if e.limit == 0 {
		e.limit = DefaultHistoryLimit
	}
	if e.estim == nil {
		e.estim = tokens.Estimate
	}
	if e.extract == nil {
		e.extract = session.DisplayContent
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// Snapshot returns the current overlay.
func (e *Editor) Snapshot() Overlay { return e.current }

func (e *Editor) Operations() map[string]Operation { return e.current.Operations() }

func (e *Editor) Insertions() map[int]Insertion { return e.current.Insertions() }

func (e *Editor) CanUndo() bool { return len(e.past) > 0 }

func (e *Editor) CanRedo() bool { return len(e.future) > 0 }

// HasAnyChanges reports whether the current overlay holds any edit,
// regardless of history depth.
func (e *Editor) HasAnyChanges() bool { return !e.current.IsEmpty() }

// HistoryDepth returns the sizes of the undo and redo stacks.
func (e *Editor) HistoryDepth() (past, future int) { return len(e.past), len(e.future) }

func (e *Editor) OperationType(id string) OpKind { return e.current.OperationType(id) }

// SetOperation installs or overwrites the operation for message id.
// Storing OpKeep is rejected; use RemoveOperation to return to keep.
func (e *Editor) SetOperation(id string, op Operation) error {
	if err := validateOperation(op); err != nil {
		return fmt.Errorf("set operation for %q: %w", id, err)
	}
	e.commit(e.current.withOperation(id, op))
	e.log.Debug("set operation", zap.String("id", id), zap.String("kind", string(op.Kind)))
	return nil
}

// RemoveOperation returns message id to keep. When there is no operation
// to remove no undo step is recorded, but the redo stack is still cleared.
func (e *Editor) RemoveOperation(id string) {
	if _, ok := e.current.Operation(id); !ok {
		e.future = nil
		return
	}
	e.commit(e.current.withoutOperation(id))
	e.log.Debug("remove operation", zap.String("id", id))
}

// AddInsertion places msg at gap, replacing any insertion already there.
func (e *Editor) AddInsertion(gap int, msg session.Message) {
	e.commit(e.current.withInsertion(gap, msg))
	e.log.Debug("add insertion", zap.Int("gap", gap), zap.String("id", msg.ID))
}

// RemoveInsertion deletes the insertion at gap. An empty gap records no
// undo step and only clears the redo stack.
func (e *Editor) RemoveInsertion(gap int) {
	if _, ok := e.current.Insertion(gap); !ok {
		e.future = nil
		return
	}
	e.commit(e.current.withoutInsertion(gap))
	e.log.Debug("remove insertion", zap.Int("gap", gap))
}

// ReplaceInsertion edits an insertion in place: remove then add at the
// same gap, recorded as a single undo step.
func (e *Editor) ReplaceInsertion(gap int, msg session.Message) {
	e.commit(e.current.withoutInsertion(gap).withInsertion(gap, msg))
	e.log.Debug("replace insertion", zap.Int("gap", gap), zap.String("id", msg.ID))
}

// ResetAll clears every edit. It is undoable like any other mutation.
// Resetting an empty overlay records no undo step but clears the redo stack.
func (e *Editor) ResetAll() {
	if e.current.IsEmpty() {
		e.future = nil
		return
	}
	e.commit(Overlay{})
	e.log.Debug("reset all")
}

func (e *Editor) Undo() {
	if len(e.past) == 0 {
		return
	}
	last := len(e.past) - 1
	prev := e.past[last]
	e.past = e.past[:last]
	e.future = append(e.future, e.current)
	e.current = prev
	e.log.Debug("undo", zap.Int("past", len(e.past)), zap.Int("future", len(e.future)))
}

func (e *Editor) Redo() {
	if len(e.future) == 0 {
		return
	}
	last := len(e.future) - 1
	next := e.future[last]
	e.future = e.future[:last]
	e.past = append(e.past, e.current)
	e.current = next
	e.log.Debug("redo", zap.Int("past", len(e.past)), zap.Int("future", len(e.future)))
}

// commit pushes the current snapshot onto the undo stack, installs next
// and clears the redo stack.
func (e *Editor) commit(next Overlay) {
	e.past = append(e.past, e.current)
	if e.limit > 0 && len(e.past) > e.limit {
		dropped := len(e.past) - e.limit
		e.past = append([]Overlay(nil), e.past[dropped:]...)
	}
	e.current = next
	e.future = nil
}

// PreviewMessages projects originals through the current overlay.
func (e *Editor) PreviewMessages(originals []session.Message) []PreviewEntry {
	return Project(originals, e.current, e.estim, e.extract)
}

// Stats aggregates token totals of originals under the current overlay.
func (e *Editor) Stats(originals []session.Message) Stats {
	return ComputeStats(originals, e.current, e.estim, e.extract)
}

func (e *Editor) ChangeStats() ChangeStats {
	return countChanges(e.current)
}
