package diffview

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is one line of a line-level edit script.
type Op struct {
	Kind byte // ' ', '-' or '+'
	Line string
}

// Lines computes a line-level edit script between before and after.
func Lines(before, after string) []Op {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []Op
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, line := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, Op{Kind: ' ', Line: line})
			case diffmatchpatch.DiffDelete:
				ops = append(ops, Op{Kind: '-', Line: line})
			case diffmatchpatch.DiffInsert:
				ops = append(ops, Op{Kind: '+', Line: line})
			}
		}
	}
	return ops
}

// Unified renders a single-hunk unified diff of before and after.
func Unified(oldName, newName, before, after string) string {
	if before == after {
		return fmt.Sprintf("--- %s\n+++ %s\n(no differences)\n", oldName, newName)
	}

	ops := Lines(before, after)
	oldCount, newCount := 0, 0
	for _, op := range ops {
		if op.Kind != '+' {
			oldCount++
		}
		if op.Kind != '-' {
			newCount++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	fmt.Fprintf(&b, "@@ -1,%d +1,%d @@\n", oldCount, newCount)
	for _, op := range ops {
		b.WriteByte(op.Kind)
		b.WriteString(op.Line)
		b.WriteByte('\n')
	}
	return b.String()
}
