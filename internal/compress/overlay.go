// Package compress tracks non-destructive compression edits over an
// immutable sequence of original session messages.
//
// Edits live in an Overlay: per-message operations (delete or modify) and
// per-gap insertions. An Editor keeps a linear undo/redo history of whole
// overlay snapshots, and projects the overlay into a preview sequence and
// token statistics on demand.
package compress

import (
	"errors"

	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
)

// OpKind tags the state of one original message.
type OpKind string

const (
	// OpKeep is the default state. It is represented by the absence of an
	// operation and can never be stored.
	OpKeep   OpKind = "keep"
	OpDelete OpKind = "delete"
	OpModify OpKind = "modify"
)

// GapBeforeFirst is the gap index of an insertion placed before the first
// original message. Gap i (0 <= i < N) sits immediately after message i.
const GapBeforeFirst = -1

var (
	ErrKeepOperation    = errors.New("keep cannot be stored as an operation; remove the operation instead")
	ErrUnknownOperation = errors.New("unknown operation kind")
)

// Operation overrides one original message.
type Operation struct {
	Kind     OpKind
	Original session.Message
	// Content is the replacement text of a modify operation.
	Content string
}

// Delete builds a delete operation for msg.
func Delete(msg session.Message) Operation {
	return Operation{Kind: OpDelete, Original: msg}
}

// Modify builds a modify operation replacing msg's content with content.
func Modify(msg session.Message, content string) Operation {
	return Operation{Kind: OpModify, Original: msg, Content: content}
}

// Insertion is a synthetic message placed at a gap.
type Insertion struct {
	Gap     int
	Message session.Message
}

// Overlay is one immutable snapshot of all edits. The zero value is the
// empty overlay. Methods that change it return a new Overlay and leave the
// receiver untouched.
type Overlay struct {
	ops        map[string]Operation
	insertions map[int]Insertion
}

func (o Overlay) IsEmpty() bool {
	return len(o.ops) == 0 && len(o.insertions) == 0
}

// Operation returns the stored operation for id, if any.
func (o Overlay) Operation(id string) (Operation, bool) {
	op, ok := o.ops[id]
	return op, ok
}

// OperationType returns OpKeep when no operation is stored for id.
func (o Overlay) OperationType(id string) OpKind {
	if op, ok := o.ops[id]; ok {
		return op.Kind
	}
	return OpKeep
}

// Insertion returns the insertion at gap, if any.
func (o Overlay) Insertion(gap int) (Insertion, bool) {
	ins, ok := o.insertions[gap]
	return ins, ok
}

// Operations returns a copy of the operation mapping.
func (o Overlay) Operations() map[string]Operation {
	out := make(map[string]Operation, len(o.ops))
	for id, op := range o.ops {
		out[id] = op
	}
	return out
}

// Insertions returns a copy of the insertion mapping.
func (o Overlay) Insertions() map[int]Insertion {
	out := make(map[int]Insertion, len(o.insertions))
	for gap, ins := range o.insertions {
		out[gap] = ins
	}
	return out
}

func (o Overlay) OperationCount() int { return len(o.ops) }

func (o Overlay) InsertionCount() int { return len(o.insertions) }

func (o Overlay) withOperation(id string, op Operation) Overlay {
	ops := o.Operations()
	ops[id] = op
	return Overlay{ops: ops, insertions: o.insertions}
}

func (o Overlay) withoutOperation(id string) Overlay {
	ops := o.Operations()
	delete(ops, id)
	return Overlay{ops: ops, insertions: o.insertions}
}

func (o Overlay) withInsertion(gap int, msg session.Message) Overlay {
	insertions := o.Insertions()
	insertions[gap] = Insertion{Gap: gap, Message: msg}
	return Overlay{ops: o.ops, insertions: insertions}
}

func (o Overlay) withoutInsertion(gap int) Overlay {
	insertions := o.Insertions()
	delete(insertions, gap)
	return Overlay{ops: o.ops, insertions: insertions}
}

func validateOperation(op Operation) error {
	switch op.Kind {
	case OpDelete, OpModify:
		return nil
	case OpKeep:
		return ErrKeepOperation
	default:
		return ErrUnknownOperation
	}
}
