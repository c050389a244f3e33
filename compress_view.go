package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/mantra-hq/mantra-releases-sub000/internal/compress"
	"github.com/mantra-hq/mantra-releases-sub000/internal/config"
	"github.com/mantra-hq/mantra-releases-sub000/internal/diffview"
	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
	"github.com/mantra-hq/mantra-releases-sub000/internal/tokens"
)

type promptKind int

const (
	promptModify promptKind = iota
	promptInsert
	promptEditInsertion
)

// editPrompt is the textarea overlay used for modify and insert edits.
type editPrompt struct {
	kind promptKind
	// index is the original message being modified.
	index int
	// gap is the insertion gap for insert prompts.
	gap   int
	role  string
	input textarea.Model
}

// compressState is the compression screen. It owns the editor for the
// session and is discarded when the screen is left.
type compressState struct {
	editor    *compress.Editor
	originals []session.Message
	estimate  compress.TokenEstimator
	log       *zap.Logger

	cursor       int
	diffView     bool
	detailScroll int
	// detailKey is the preview key the detail pane was last scrolled for.
	detailKey string
	prompt    *editPrompt

	width  int
	height int
}

var (
	deletedRowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Strikethrough(true)
	modifiedRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	insertedRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	savedStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

func newCompressState(messages []session.Message, cc config.CompressionConfig, logger *zap.Logger) *compressState {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := tokens.NewCounter(cc.CharsPerToken)
	originals := make([]session.Message, len(messages))
	copy(originals, messages)
	return &compressState{
		editor: compress.NewEditor(compress.Config{
			HistoryLimit: cc.HistoryLimit,
			Estimate:     counter.Estimate,
			Logger:       logger.Named("compress"),
		}),
		originals: originals,
		estimate:  counter.Estimate,
		log:       logger,
	}
}

func (c *compressState) resize(width, height int) {
	c.width = width
	c.height = height
	if c.prompt != nil {
		c.prompt.input.SetWidth(max(20, width-4))
		c.prompt.input.SetHeight(max(3, height/2))
	}
}

func (c *compressState) stats() compress.Stats {
	return c.editor.Stats(c.originals)
}

func (c *compressState) summaryLine() string {
	st := c.stats()
	past, future := c.editor.HistoryDepth()
	return fmt.Sprintf("%dt -> %dt (saved %d, %.1f%%) | -%d ~%d +%d | undo:%d redo:%d",
		st.OriginalTotal, st.CompressedTotal, st.SavedTokens, st.SavedPercentage,
		st.Changes.Deleted, st.Changes.Modified, st.Changes.Inserted,
		past, future)
}

func (c *compressState) current() (session.Message, bool) {
	if len(c.originals) == 0 || c.cursor < 0 || c.cursor >= len(c.originals) {
		return session.Message{}, false
	}
	return c.originals[c.cursor], true
}

func (c *compressState) move(delta int) {
	c.cursor = clampIndex(c.cursor+delta, len(c.originals))
	c.detailScroll = 0
}

// toggleDelete deletes the message under the cursor, or restores it when it
// is already deleted. Deleting a modified message replaces the modify.
func (c *compressState) toggleDelete() string {
	msg, ok := c.current()
	if !ok {
		return "No message selected"
	}
	if c.editor.OperationType(msg.ID) == compress.OpDelete {
		c.editor.RemoveOperation(msg.ID)
		return fmt.Sprintf("Restored message %s", msg.ID)
	}
	if err := c.editor.SetOperation(msg.ID, compress.Delete(msg)); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Deleted message %s (-%dt)", msg.ID, c.estimate(session.DisplayContent(msg.Content)))
}

// restore drops the operation under the cursor, or the insertion after it
// when the message has no operation.
func (c *compressState) restore() string {
	msg, ok := c.current()
	if !ok {
		return "No message selected"
	}
	if c.editor.OperationType(msg.ID) != compress.OpKeep {
		c.editor.RemoveOperation(msg.ID)
		return fmt.Sprintf("Restored message %s", msg.ID)
	}
	if _, ok := c.editor.Snapshot().Insertion(c.cursor); ok {
		c.editor.RemoveInsertion(c.cursor)
		return "Removed insertion"
	}
	return "Nothing to restore"
}

func (c *compressState) removeLeadingInsertion() string {
	if _, ok := c.editor.Snapshot().Insertion(compress.GapBeforeFirst); !ok {
		return "No insertion before the first message"
	}
	c.editor.RemoveInsertion(compress.GapBeforeFirst)
	return "Removed insertion before the first message"
}

func (c *compressState) undo() string {
	if !c.editor.CanUndo() {
		return "Nothing to undo"
	}
	c.editor.Undo()
	return "Undone"
}

func (c *compressState) redo() string {
	if !c.editor.CanRedo() {
		return "Nothing to redo"
	}
	c.editor.Redo()
	return "Redone"
}

func (c *compressState) reset() string {
	if !c.editor.HasAnyChanges() {
		return "No changes to reset"
	}
	c.editor.ResetAll()
	return "Reset all changes (u to undo)"
}

func (c *compressState) openPrompt(kind promptKind, gap int, role, initial string) {
	input := textarea.New()
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetWidth(max(20, c.width-4))
	input.SetHeight(max(3, c.height/2))
	input.SetValue(initial)
	input.Focus()
	c.prompt = &editPrompt{kind: kind, index: c.cursor, gap: gap, role: role, input: input}
}

func (c *compressState) openModify() string {
	msg, ok := c.current()
	if !ok {
		return "No message selected"
	}
	initial := session.DisplayContent(msg.Content)
	if op, exists := c.editor.Snapshot().Operation(msg.ID); exists && op.Kind == compress.OpModify {
		initial = op.Content
	}
	c.openPrompt(promptModify, 0, msg.Role, initial)
	return fmt.Sprintf("Modify message %s", msg.ID)
}

// openInsert starts an insertion at gap. An occupied gap is edited instead.
func (c *compressState) openInsert(gap int) string {
	if len(c.originals) == 0 && gap != compress.GapBeforeFirst {
		return "No message selected"
	}
	if ins, ok := c.editor.Snapshot().Insertion(gap); ok {
		c.openPrompt(promptEditInsertion, gap, ins.Message.Role, session.DisplayContent(ins.Message.Content))
		return "Edit existing insertion"
	}
	c.openPrompt(promptInsert, gap, "user", "")
	return "Insert message"
}

func (c *compressState) openEditInsertion(gap int) string {
	ins, ok := c.editor.Snapshot().Insertion(gap)
	if !ok {
		return "No insertion after this message"
	}
	c.openPrompt(promptEditInsertion, gap, ins.Message.Role, session.DisplayContent(ins.Message.Content))
	return "Edit insertion"
}

func (c *compressState) toggleRole() {
	if c.prompt == nil || c.prompt.kind == promptModify {
		return
	}
	if c.prompt.role == "user" {
		c.prompt.role = "assistant"
	} else {
		c.prompt.role = "user"
	}
}

// savePrompt applies the open prompt to the editor and closes it.
func (c *compressState) savePrompt(now time.Time) string {
	p := c.prompt
	if p == nil {
		return ""
	}
	c.prompt = nil
	text := p.input.Value()

	switch p.kind {
	case promptModify:
		if p.index < 0 || p.index >= len(c.originals) {
			return "No message selected"
		}
		msg := c.originals[p.index]
		if text == session.DisplayContent(msg.Content) {
			if c.editor.OperationType(msg.ID) == compress.OpModify {
				c.editor.RemoveOperation(msg.ID)
				return fmt.Sprintf("Content unchanged, restored message %s", msg.ID)
			}
			return "Content unchanged"
		}
		if err := c.editor.SetOperation(msg.ID, compress.Modify(msg, text)); err != nil {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Modified message %s", msg.ID)
	case promptInsert:
		if strings.TrimSpace(text) == "" {
			return "Empty insertion discarded"
		}
		c.editor.AddInsertion(p.gap, session.NewInsertedMessage(p.role, text, now))
		return "Inserted message"
	case promptEditInsertion:
		ins, ok := c.editor.Snapshot().Insertion(p.gap)
		if !ok {
			return "Insertion no longer exists"
		}
		if strings.TrimSpace(text) == "" {
			c.editor.RemoveInsertion(p.gap)
			return "Removed insertion"
		}
		msg := ins.Message
		msg.Role = p.role
		msg.Content = session.TextBlocks(text)
		c.editor.ReplaceInsertion(p.gap, msg)
		return "Updated insertion"
	}
	return ""
}

func (m model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.compress
	switch msg.String() {
	case "esc":
		c.prompt = nil
		m.status = "Edit cancelled"
		return m, nil
	case "ctrl+s":
		m.status = c.savePrompt(time.Now())
		return m, nil
	case "ctrl+t":
		c.toggleRole()
		return m, nil
	}
	var cmd tea.Cmd
	c.prompt.input, cmd = c.prompt.input.Update(msg)
	return m, cmd
}

func (m model) handleCompressKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.compress
	if c == nil {
		m.screen = screenConversation
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		c.move(-1)
	case "down", "j":
		c.move(1)
	case "g":
		c.move(-len(c.originals))
	case "G":
		c.move(len(c.originals))
	case "J", "shift+down":
		c.detailScroll++
	case "K", "shift+up":
		c.detailScroll = max(0, c.detailScroll-1)
	case "d":
		m.status = c.toggleDelete()
	case "e":
		m.status = c.openModify()
		return m, textarea.Blink
	case "i":
		m.status = c.openInsert(c.cursor)
		return m, textarea.Blink
	case "I":
		m.status = c.openInsert(compress.GapBeforeFirst)
		return m, textarea.Blink
	case "E":
		m.status = c.openEditInsertion(c.cursor)
		if c.prompt != nil {
			return m, textarea.Blink
		}
	case "x":
		m.status = c.restore()
	case "X":
		m.status = c.removeLeadingInsertion()
	case "u":
		m.status = c.undo()
	case "ctrl+r":
		m.status = c.redo()
	case "R":
		m.status = c.reset()
	case "D":
		c.diffView = !c.diffView
		c.detailScroll = 0
	case "b", "backspace", "esc":
		changed := c.editor.ChangeStats().Total()
		m.compress = nil
		m.screen = screenConversation
		if changed > 0 {
			m.status = fmt.Sprintf("Left compression mode, discarded %d changes", changed)
		} else {
			m.status = "Left compression mode"
		}
	}
	return m, nil
}

func (m model) renderCompress() string {
	c := m.compress
	if c == nil {
		return "Compression mode is not active"
	}
	if c.prompt != nil {
		return c.renderPrompt()
	}
	if len(c.originals) == 0 {
		return "No messages to compress"
	}

	entries := c.editor.PreviewMessages(c.originals)
	available := max(4, m.height-5)
	detailHeight := max(7, available/3)
	listHeight := max(3, available-detailHeight-1)

	selected := c.selectEntry(entries)

	start, end := visibleWindow(selected, len(entries), listHeight)
	listLines := make([]string, 0, listHeight)
	for idx := start; idx < end; idx++ {
		line := c.formatEntryLine(entries[idx], m.width)
		if idx == selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = entryStyle(entries[idx].Kind).Render("  " + line)
		}
		listLines = append(listLines, line)
	}

	detailLines := c.renderDetail(entries[selected], detailHeight)
	return strings.Join(listLines, "\n") + "\n" + helpStyle.Render(strings.Repeat("-", max(20, m.width-1))) + "\n" + strings.Join(detailLines, "\n")
}

// selectEntry returns the row of the message under the cursor. A different
// preview key than last render (another message, or the same message after an
// edit) starts the detail pane from the top.
func (c *compressState) selectEntry(entries []compress.PreviewEntry) int {
	selected := 0
	for idx, entry := range entries {
		if entry.Index == c.cursor {
			selected = idx
			break
		}
	}
	if key := entries[selected].Key(); key != c.detailKey {
		c.detailKey = key
		c.detailScroll = 0
	}
	return selected
}

func entryStyle(kind compress.PreviewKind) lipgloss.Style {
	switch kind {
	case compress.PreviewDeleted:
		return deletedRowStyle
	case compress.PreviewModify:
		return modifiedRowStyle
	case compress.PreviewInsert:
		return insertedRowStyle
	default:
		return lipgloss.NewStyle()
	}
}

func (c *compressState) formatEntryLine(entry compress.PreviewEntry, width int) string {
	text := session.DisplayContent(entry.Message.Content)
	var marker, position, delta string
	switch entry.Kind {
	case compress.PreviewDeleted:
		marker = "D"
		delta = fmt.Sprintf(" -%dt", entry.TokensSaved)
	case compress.PreviewModify:
		marker = "M"
		text = entry.ModifiedContent
		delta = fmt.Sprintf(" %+dt", entry.TokenDelta)
	case compress.PreviewInsert:
		marker = "+"
		delta = fmt.Sprintf(" +%dt", c.estimate(text))
	default:
		marker = " "
	}
	if entry.Kind == compress.PreviewInsert {
		position = fmt.Sprintf("gap %d", entry.Gap)
	} else {
		position = fmt.Sprintf("#%d", entry.Index)
	}
	preview := truncateString(oneLine(session.Sanitize(text)), max(8, width-40))
	return fmt.Sprintf("%s %s %s%s %s", marker, position, strings.ToUpper(entry.Message.Role), delta, preview)
}

func (c *compressState) renderDetail(entry compress.PreviewEntry, detailHeight int) []string {
	width := max(20, c.width-4)
	original := session.DisplayContent(entry.Message.Content)

	var allLines []string
	allLines = append(allLines, fmt.Sprintf("Message: %s  Role: %s  %s", entry.ID, entry.Message.Role, formatTimestamp(entry.Message.Timestamp)))
	switch entry.Kind {
	case compress.PreviewDeleted:
		allLines = append(allLines, fmt.Sprintf("Deleted, saves %d tokens", entry.TokensSaved))
	case compress.PreviewModify:
		allLines = append(allLines, fmt.Sprintf("Modified, delta %+d tokens", entry.TokenDelta))
		if c.diffView {
			diff := diffview.Unified("original/"+entry.ID, "modified/"+entry.ID, original, entry.ModifiedContent)
			for _, dl := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
				allLines = append(allLines, colorizeDiffLine(dl))
			}
		} else {
			allLines = append(allLines, "NEW:")
			for _, line := range strings.Split(wrapText(session.Sanitize(entry.ModifiedContent), width), "\n") {
				allLines = append(allLines, "  "+line)
			}
			allLines = append(allLines, "ORIGINAL:")
		}
	case compress.PreviewInsert:
		allLines = append(allLines, fmt.Sprintf("Inserted at gap %d", entry.Gap))
	}
	if entry.Kind != compress.PreviewModify || !c.diffView {
		for _, line := range strings.Split(wrapText(session.Sanitize(original), width), "\n") {
			allLines = append(allLines, "  "+line)
		}
	}

	maxScroll := max(0, len(allLines)-detailHeight)
	c.detailScroll = max(0, min(c.detailScroll, maxScroll))
	start := c.detailScroll
	end := min(len(allLines), start+detailHeight)
	visible := allLines[start:end]

	if maxScroll > 0 && len(visible) > 0 {
		indicator := fmt.Sprintf(" [%d/%d lines, Shift+J/K to scroll]", c.detailScroll+detailHeight, len(allLines))
		visible[0] = visible[0] + helpStyle.Render(indicator)
	}
	return padLines(visible, detailHeight)
}

func (c *compressState) renderPrompt() string {
	p := c.prompt
	var title string
	switch p.kind {
	case promptModify:
		msg := c.originals[p.index]
		title = fmt.Sprintf("Modify message %s (%s, %dt)", msg.ID, strings.ToUpper(msg.Role), c.estimate(session.DisplayContent(msg.Content)))
	case promptInsert:
		title = fmt.Sprintf("Insert %s message at %s", strings.ToUpper(p.role), gapLabel(p.gap))
	case promptEditInsertion:
		title = fmt.Sprintf("Edit %s insertion at %s", strings.ToUpper(p.role), gapLabel(p.gap))
	}
	counter := fmt.Sprintf("~%dt", c.estimate(p.input.Value()))
	return titleStyle.Render(title) + "  " + savedStyle.Render(counter) + "\n\n" + p.input.View()
}

func gapLabel(gap int) string {
	if gap == compress.GapBeforeFirst {
		return "the start"
	}
	return fmt.Sprintf("gap %d", gap)
}
