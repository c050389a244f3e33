package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"go.uber.org/zap"

	"github.com/mantra-hq/mantra-releases-sub000/internal/config"
	"github.com/mantra-hq/mantra-releases-sub000/internal/logging"
	"github.com/mantra-hq/mantra-releases-sub000/internal/session"
)

type screen int

const (
	screenAgents screen = iota
	screenSessions
	screenConversation
	screenCompress
)

// Message sources shown in the conversation header.
const (
	sourceJSONL = "jsonl"
	sourceLCM   = "lcm"
)

// model tracks TUI state across all navigation levels.
type model struct {
	screen screen
	cfg    *config.Config
	log    *zap.Logger

	agents      []session.Agent
	agentCursor int
	// sessions is nil until an agent is opened.
	sessions       *sessionList
	messages       []session.Message
	messagesSource string

	convViewport viewport.Model
	width        int
	height       int

	// compress is non-nil only while the compression screen is open.
	compress *compressState

	status string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))

	roleUserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	roleAssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	roleSystemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	roleToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	diffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	diffRemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	diffHunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	diffHeaderStyle = lipgloss.NewStyle().Bold(true)
)

var roleStyles = map[string]lipgloss.Style{
	"user":      roleUserStyle,
	"assistant": roleAssistantStyle,
	"system":    roleSystemStyle,
}

// diffLineStyles is checked in order, so file headers win over +/- lines.
var diffLineStyles = []struct {
	prefix string
	style  lipgloss.Style
}{
	{"+++", diffHeaderStyle},
	{"---", diffHeaderStyle},
	{"@@", diffHunkStyle},
	{"+", diffAddStyle},
	{"-", diffRemStyle},
}

var screenHelp = map[screen]string{
	screenAgents:       "up/down: move | enter: open agent sessions | r: reload | q: quit",
	screenSessions:     "up/down: move | enter: open conversation | b: back | r: reload | q: quit",
	screenConversation: "j/k/up/down: scroll | pgup/pgdown | g/G: top/bottom | r: reload | l: load LCM copy | z: compress | b: back | q: quit",
	screenCompress: "j/k: move  J/K: scroll detail  D: diff\n" +
		"d: delete  e: modify  i/I: insert  E: edit insert  x/X: restore  u: undo  ctrl+r: redo  R: reset  b: back",
}

// subcommands run instead of the TUI when named as the first argument.
var subcommands = map[string]func(args []string) error{
	"stats":  func(args []string) error { return runStatsCommand(args, os.Stdout) },
	"config": func(args []string) error { return runConfigCommand(args, os.Stdout) },
}

func main() {
	if len(os.Args) > 1 {
		if run, ok := subcommands[os.Args[1]]; ok {
			if err := run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "mantra-tui %s failed: %v\n", os.Args[1], err)
				os.Exit(1)
			}
			return
		}
	}

	cfg, fl, err := loadRuntime()
	defer func() { _ = fl.Close() }()

	m := newModel(cfg, fl.Logger)
	if err != nil {
		m.status = "Error: " + err.Error()
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mantra-tui failed: %v\n", err)
		os.Exit(1)
	}
}

// loadRuntime resolves config and the file logger. The returned config is
// never nil; on error it holds defaults so the TUI can still start.
func loadRuntime() (*config.Config, logging.FileLogger, error) {
	dataDir, err := config.DefaultDataDir()
	if err != nil {
		return config.Default(""), logging.Nop(), err
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return config.Default(dataDir), logging.Nop(), err
	}
	fl, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return cfg, logging.Nop(), err
	}
	fl.Logger.Info("mantra-tui starting",
		zap.String("agents_dir", cfg.AgentsDir),
		zap.String("lcm_db", cfg.LCMDBPath),
		zap.Int("history_limit", cfg.Compression.HistoryLimit))
	return cfg, fl, nil
}

func newModel(cfg *config.Config, logger *zap.Logger) model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := model{screen: screenAgents, cfg: cfg, log: logger}
	if err := m.reloadAgents(); err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	m.status = fmt.Sprintf("Loaded %d agents from %s", len(m.agents), cfg.AgentsDir)
	return m
}

func (m *model) reloadAgents() error {
	agents, err := session.LoadAgents(m.cfg.AgentsDir)
	if err != nil {
		return err
	}
	m.agents = agents
	m.agentCursor = clampIndex(m.agentCursor, len(agents))
	return nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	prompting := m.screen == screenCompress && m.compress != nil && m.compress.prompt != nil

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layoutConversation()
		m.showConversationTail()
		if m.compress != nil {
			m.compress.resize(m.width, m.height)
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			return m, tea.Quit
		case prompting:
			// Every other key is prompt text.
			return m.handlePromptKey(msg)
		case msg.String() == "q":
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	if prompting {
		var cmd tea.Cmd
		m.compress.prompt.input, cmd = m.compress.prompt.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenAgents:
		return m.handleAgentsKey(msg)
	case screenSessions:
		return m.handleSessionsKey(msg)
	case screenConversation:
		return m.handleConversationKey(msg)
	case screenCompress:
		return m.handleCompressKey(msg)
	}
	return m, nil
}

func (m model) handleAgentsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.agentCursor = clampIndex(m.agentCursor-1, len(m.agents))
	case "down", "j":
		m.agentCursor = clampIndex(m.agentCursor+1, len(m.agents))
	case "enter":
		agent, ok := m.currentAgent()
		if !ok {
			m.status = "No agents found"
			return m, nil
		}
		list, err := openSessionList(agent, m.cfg.LCMDBPath)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.sessions = list
		m.messages = nil
		m.screen = screenSessions
		m.status = fmt.Sprintf("Loaded %d of %d sessions for agent %s", len(list.rows), len(list.files), agent.Name)
	case "r":
		if err := m.reloadAgents(); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Reloaded %d agents", len(m.agents))
	}
	return m, nil
}

func (m model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.sessions
	if list == nil {
		m.screen = screenAgents
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		list.move(-1)
	case "down", "j":
		if loaded := list.move(1); loaded > 0 {
			m.status = fmt.Sprintf("Loaded %d of %d sessions", len(list.rows), len(list.files))
		}
	case "enter":
		entry, ok := list.selected()
		if !ok {
			m.status = "No session selected"
			return m, nil
		}
		if err := m.openSessionFile(entry); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Loaded %d messages from %s", len(m.messages), entry.filename)
		if entry.conversationID > 0 {
			m.status += fmt.Sprintf(" (conv_id:%d)", entry.conversationID)
		}
	case "b", "backspace":
		m.sessions = nil
		m.screen = screenAgents
		m.status = "Back to agents"
	case "r":
		if err := list.reload(); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Reloaded %d of %d sessions", len(list.rows), len(list.files))
	}
	return m, nil
}

// openSessionFile parses the JSONL file of entry and shows it.
func (m *model) openSessionFile(entry sessionEntry) error {
	messages, err := session.ParseFile(entry.path)
	if err != nil {
		return err
	}
	m.showMessages(messages, sourceJSONL)
	return nil
}

func (m *model) showMessages(messages []session.Message, source string) {
	m.messages = messages
	m.messagesSource = source
	m.screen = screenConversation
	m.showConversationTail()
}

func (m model) handleConversationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := &m.convViewport
	switch msg.String() {
	case "up", "k":
		vp.LineUp(1)
	case "down", "j":
		vp.LineDown(1)
	case "pgup":
		vp.HalfViewUp()
	case "pgdown":
		vp.HalfViewDown()
	case "g":
		vp.GotoTop()
	case "G":
		vp.GotoBottom()
	case "b", "backspace":
		m.screen = screenSessions
		m.status = "Back to sessions"
	case "r":
		entry, ok := m.sessions.selected()
		if !ok {
			m.status = "No session selected"
			return m, nil
		}
		if err := m.openSessionFile(entry); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Reloaded %d messages", len(m.messages))
	case "l":
		conversationID, ok := m.currentConversationID()
		if !ok {
			m.status = "No LCM conversation for this session"
			return m, nil
		}
		messages, err := loadLCMConversation(m.cfg.LCMDBPath, conversationID)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.showMessages(messages, sourceLCM)
		m.status = fmt.Sprintf("Loaded %d messages from LCM conversation %d", len(messages), conversationID)
	case "z":
		if len(m.messages) == 0 {
			m.status = "No messages to compress"
			return m, nil
		}
		m.compress = newCompressState(m.messages, m.cfg.Compression, m.log)
		m.compress.resize(m.width, m.height)
		m.screen = screenCompress
		m.status = fmt.Sprintf("Compression mode: %d messages, ~%d tokens", len(m.messages), m.compress.stats().OriginalTotal)
	}
	return m, nil
}

func (m model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing mantra-tui..."
	}
	return strings.Join([]string{m.renderHeader(), m.renderBody(), helpStyle.Render(m.renderStatus())}, "\n")
}

func (m model) renderHeader() string {
	crumbs := []string{"mantra-tui"}
	switch m.screen {
	case screenAgents:
		crumbs = append(crumbs, "Agents")
	case screenSessions:
		crumbs = append(crumbs, "Sessions")
		if m.sessions != nil {
			crumbs = append(crumbs, m.sessions.agent.Name)
		}
	case screenConversation:
		crumbs = append(crumbs, "Conversation")
		if conversationID, ok := m.currentConversationID(); ok {
			crumbs = append(crumbs, fmt.Sprintf("conv_id:%d", conversationID))
		}
		if m.messagesSource == sourceLCM {
			crumbs = append(crumbs, sourceLCM)
		}
	case screenCompress:
		crumbs = append(crumbs, "Compress")
		if m.compress != nil {
			crumbs = append(crumbs, m.compress.summaryLine())
		}
	}
	return titleStyle.Render(strings.Join(crumbs, " | ")) + "\n" + helpStyle.Render(m.renderHelp())
}

func (m model) renderHelp() string {
	if m.screen == screenCompress && m.compress != nil && m.compress.prompt != nil {
		return "ctrl+s: save | esc: cancel | ctrl+t: toggle role (insert)"
	}
	if help, ok := screenHelp[m.screen]; ok {
		return help
	}
	return "q: quit"
}

func (m model) renderBody() string {
	switch m.screen {
	case screenAgents:
		return m.renderAgents()
	case screenSessions:
		if m.sessions == nil {
			return "No agent selected"
		}
		return m.sessions.render(max(1, m.height-4))
	case screenConversation:
		return m.renderConversation()
	case screenCompress:
		return m.renderCompress()
	}
	return "Unknown screen"
}

func (m model) renderStatus() string {
	if m.screen != screenSessions || m.sessions == nil {
		return m.status
	}
	if m.status == "" {
		return m.sessions.progress()
	}
	return m.sessions.progress() + " | " + m.status
}

func (m model) renderAgents() string {
	if len(m.agents) == 0 {
		return "No agents found under " + m.cfg.AgentsDir
	}
	names := make([]string, len(m.agents))
	for i, agent := range m.agents {
		names[i] = agent.Name
	}
	return renderCursorList(names, m.agentCursor, max(1, m.height-4))
}

func (m model) renderConversation() string {
	switch {
	case len(m.messages) == 0:
		return "No messages found in this session"
	case m.convViewport.Width <= 0 || m.convViewport.Height <= 0:
		return "Resizing conversation viewport..."
	}
	return m.convViewport.View()
}

// layoutConversation fits the conversation viewport to the window.
func (m *model) layoutConversation() {
	width, height := max(20, m.width-2), max(3, m.height-4)
	if m.convViewport.Width == 0 {
		m.convViewport = viewport.New(width, height)
		return
	}
	m.convViewport.Width, m.convViewport.Height = width, height
}

// showConversationTail re-renders the loaded messages into the viewport and
// scrolls to the newest one.
func (m *model) showConversationTail() {
	vp := &m.convViewport
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	if len(m.messages) == 0 {
		vp.SetContent("No messages loaded")
		vp.GotoTop()
		return
	}
	vp.SetContent(renderConversationText(m.messages, vp.Width))
	vp.GotoBottom()
}

func renderConversationText(messages []session.Message, width int) string {
	blocks := make([]string, len(messages))
	for i, msg := range messages {
		blocks[i] = renderMessageBlock(msg, max(20, width-2))
	}
	return strings.Join(blocks, "\n\n")
}

// renderMessageBlock draws one message as a role-colored header line over its
// indented, wrapped display content.
func renderMessageBlock(msg session.Message, width int) string {
	role := strings.ToUpper(msg.Role)
	header := role
	if ts := formatTimestamp(msg.Timestamp); ts != "" {
		header = ts + "  " + role
	}

	body := session.Sanitize(session.DisplayContent(msg.Content))
	if strings.TrimSpace(body) == "" {
		body = "(no text content)"
	}

	style := roleStyle(msg.Role)
	return style.Bold(true).Render(header) + "\n" + style.Render(indentLines(wrapText(body, width), "  "))
}

func colorizeDiffLine(line string) string {
	for _, candidate := range diffLineStyles {
		if strings.HasPrefix(line, candidate.prefix) {
			return candidate.style.Render(line)
		}
	}
	return line
}

func wrapText(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.ReplaceAll(wordwrap.String(text, width), "\r", "")
}

func indentLines(text, prefix string) string {
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix)
}

func roleStyle(role string) lipgloss.Style {
	if style, ok := roleStyles[strings.ToLower(role)]; ok {
		return style
	}
	return roleToolStyle
}

func (m model) currentAgent() (session.Agent, bool) {
	if m.agentCursor < 0 || m.agentCursor >= len(m.agents) {
		return session.Agent{}, false
	}
	return m.agents[m.agentCursor], true
}

func (m model) currentConversationID() (int64, bool) {
	entry, ok := m.sessions.selected()
	if !ok || entry.conversationID <= 0 {
		return 0, false
	}
	return entry.conversationID, true
}

// renderCursorList draws rows in height lines, marking the row at cursor.
func renderCursorList(rows []string, cursor, height int) string {
	start, end := visibleWindow(cursor, len(rows), height)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		if i == cursor {
			lines = append(lines, selectedStyle.Render("> "+rows[i]))
			continue
		}
		lines = append(lines, "  "+rows[i])
	}
	return strings.Join(lines, "\n")
}

// visibleWindow returns the [start, end) range of total rows that fits in
// height lines with cursor kept near the middle.
func visibleWindow(cursor, total, height int) (start, end int) {
	start = min(max(cursor-height/2, 0), max(total-height, 0))
	return start, min(total, start+height)
}

// oneLine collapses all whitespace runs to single spaces.
func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncateString(text string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func padLines(lines []string, height int) []string {
	if missing := height - len(lines); missing > 0 {
		lines = append(lines, make([]string, missing)...)
	}
	return lines
}

// clampIndex bounds i to a valid index of a list of n items, or 0 when the
// list is empty.
func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}
