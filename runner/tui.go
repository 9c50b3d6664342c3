package runner

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIFormatter implements Formatter with an animated tree of fixture files,
// tables and cases. It renders to the alternate screen while cases run and
// prints the final tree to w once the summary arrives.
type TUIFormatter struct {
	w       io.Writer
	program *tea.Program
	model   *tuiModel

	mu       sync.Mutex
	once     sync.Once
	started  bool
	finished bool
	done     chan struct{}
}

// NewTUIFormatter creates a TUI formatter. Cases of the given fixtures are
// shown as pending before they run; cases not listed are added as their
// events arrive.
func NewTUIFormatter(w io.Writer, fixtures ...*Fixture) *TUIFormatter {
	model := newTUIModel(newTUIStyles(w))
	for _, f := range fixtures {
		model.addFixture(f)
	}

	p := tea.NewProgram(model,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
		tea.WithAltScreen(),
	)

	return &TUIFormatter{
		w:       w,
		program: p,
		model:   model,
		done:    make(chan struct{}),
	}
}

// start runs the event loop on the first event.
func (t *TUIFormatter) start() {
	t.once.Do(func() {
		t.started = true

		go func() {
			defer close(t.done)

			_, _ = t.program.Run()
		}()
	})
}

// Format sends an event to the TUI.
func (t *TUIFormatter) Format(event Event, _ *Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return nil
	}

	t.start()
	t.program.Send(eventMsg(event))

	return nil
}

// Summary stops the event loop and prints the final tree.
func (t *TUIFormatter) Summary(result *Result) error {
	t.mu.Lock()
	t.finished = true
	started := t.started
	t.mu.Unlock()

	if started {
		t.program.Send(doneMsg{result: result})
		t.program.Quit()
		<-t.done
	} else {
		t.model.Update(doneMsg{result: result})
	}

	_, err := fmt.Fprintln(t.w, t.model.FinalView())

	return err
}

type nodeKind int

const (
	kindSuite nodeKind = iota
	kindTable
	kindCase
)

type treeNode struct {
	name     string
	kind     nodeKind
	status   Action // "" while pending
	children []*treeNode
	byName   map[string]*treeNode

	elapsed time.Duration
	alias   string
	reason  string
	issues  []string
	err     error
}

func newNode(name string, kind nodeKind) *treeNode {
	return &treeNode{name: name, kind: kind, byName: make(map[string]*treeNode)}
}

// child returns the named child, appending it when missing.
func (n *treeNode) child(name string, kind nodeKind) *treeNode {
	if c, ok := n.byName[name]; ok {
		return c
	}

	c := newNode(name, kind)
	n.byName[name] = c
	n.children = append(n.children, c)

	return c
}

// counts tallies the finished cases below n.
func (n *treeNode) counts() (c Counts) {
	if n.kind == kindCase {
		if n.status != "" && n.status != ActionRun {
			c.add(n.status)
		}

		return c
	}

	for _, child := range n.children {
		cc := child.counts()
		c.Total += cc.Total
		c.Passed += cc.Passed
		c.Failed += cc.Failed
		c.Skipped += cc.Skipped
		c.Errors += cc.Errors
	}

	return c
}

// state is the status shown for n. Tables and suites report the worst of
// their cases.
func (n *treeNode) state() Action {
	if n.kind == kindCase {
		return n.status
	}

	var running, pending, failed bool

	for _, child := range n.children {
		switch child.state() {
		case ActionRun:
			running = true
		case ActionFail, ActionError:
			failed = true
		case "":
			pending = true
		case ActionPass, ActionSkip:
		}
	}

	switch {
	case running:
		return ActionRun
	case failed:
		return ActionFail
	case pending || len(n.children) == 0:
		return ""
	default:
		return ActionPass
	}
}

type tuiStyles struct {
	pass, fail, skip, running, dim, muted, bold lipgloss.Style
}

func newTUIStyles(w io.Writer) tuiStyles {
	r := lipgloss.NewRenderer(w)

	return tuiStyles{
		pass:    r.NewStyle().Foreground(lipgloss.Color("#04B575")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		skip:    r.NewStyle().Foreground(lipgloss.Color("#D7AF00")),
		running: r.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#626262")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
		bold:    r.NewStyle().Bold(true),
	}
}

type (
	tickMsg  time.Time
	eventMsg Event
	doneMsg  struct{ result *Result }
)

type tuiModel struct {
	styles  tuiStyles
	spinner spinner.Model

	suites  []*treeNode
	bySuite map[string]*treeNode
	cases   map[string]*treeNode // by Event.Key

	startTime time.Time
	endTime   time.Time
	result    *Result
	isDone    bool
}

func newTUIModel(styles tuiStyles) *tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}
	s.Style = styles.running

	return &tuiModel{
		styles:    styles,
		spinner:   s,
		bySuite:   make(map[string]*treeNode),
		cases:     make(map[string]*treeNode),
		startTime: time.Now(),
	}
}

func (m *tuiModel) addFixture(f *Fixture) {
	for _, c := range f.Cases {
		m.caseNode(Event{Suite: f.Path, Table: c.Table, Case: c.Name})
	}
}

func (m *tuiModel) caseNode(event Event) *treeNode {
	key := event.Key()
	if n, ok := m.cases[key]; ok {
		return n
	}

	suite, ok := m.bySuite[event.Suite]
	if !ok {
		suite = newNode(event.Suite, kindSuite)
		m.bySuite[event.Suite] = suite
		m.suites = append(m.suites, suite)
	}

	n := suite.child(event.Table, kindTable).child(event.Case, kindCase)
	m.cases[key] = n

	return n
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *tuiModel) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.isDone {
			return m, m.tick()
		}

	case spinner.TickMsg:
		if !m.isDone {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)

			return m, cmd
		}

	case eventMsg:
		m.handleEvent(Event(msg))

	case doneMsg:
		m.isDone = true
		m.endTime = time.Now()
		m.result = msg.result
		m.prune()
	}

	return m, nil
}

func (m *tuiModel) handleEvent(event Event) {
	n := m.caseNode(event)
	n.status = event.Action

	if !event.Action.IsTerminal() {
		return
	}

	n.elapsed = event.Elapsed
	n.alias = event.Alias
	n.reason = event.Reason()
	n.err = event.Error
	n.issues = n.issues[:0]

	if event.Action == ActionFail {
		for _, issue := range event.Issues {
			n.issues = append(n.issues, issue.String())
		}
	}
}

// prune drops cases that never ran, such as those excluded by a filter or
// left behind by fail-fast, and then any empty tables and suites.
func (m *tuiModel) prune() {
	for key, n := range m.cases {
		if n.status == "" {
			delete(m.cases, key)
		}
	}

	keep := func(n *treeNode) bool { return n.kind == kindCase && n.status != "" || len(n.children) > 0 }

	m.suites = slices.DeleteFunc(m.suites, func(suite *treeNode) bool {
		for _, table := range suite.children {
			table.children = slices.DeleteFunc(table.children, func(c *treeNode) bool { return !keep(c) })
		}

		suite.children = slices.DeleteFunc(suite.children, func(t *treeNode) bool { return !keep(t) })

		return !keep(suite)
	})
}

// clearEOL clears from the cursor to the end of the line.
const clearEOL = "\033[K"

func (m *tuiModel) View() string {
	lines := m.lines()
	for i := range lines {
		lines[i] += clearEOL
	}

	return strings.Join(lines, "\n") + "\n"
}

// FinalView renders the tree for printing after the program exits.
func (m *tuiModel) FinalView() string {
	return strings.Join(m.lines(), "\n")
}

func (m *tuiModel) lines() []string {
	lines := []string{m.renderHeader(), m.renderProgress(), ""}

	for _, suite := range m.suites {
		lines = append(lines, m.styles.bold.Render(suite.name))
		for i, table := range suite.children {
			lines = m.renderNode(lines, table, "", i == len(suite.children)-1)
		}

		lines = append(lines, "")
	}

	if m.isDone {
		lines = append(lines, m.renderSummary())
	}

	return lines
}

func (m *tuiModel) total() Counts {
	var c Counts
	for _, suite := range m.suites {
		sc := suite.counts()
		c.Total += sc.Total
		c.Passed += sc.Passed
		c.Failed += sc.Failed
		c.Skipped += sc.Skipped
		c.Errors += sc.Errors
	}

	if m.result != nil {
		c = m.result.Snapshot()
	}

	return c
}

func (m *tuiModel) renderHeader() string {
	title := m.styles.bold.Render("convexgen") + m.styles.dim.Render(" test")

	var status string

	switch {
	case m.isDone && m.total().Ok():
		status = m.styles.pass.Render("PASS")
	case m.isDone:
		status = m.styles.fail.Render("FAIL")
	default:
		running := 0
		for _, n := range m.cases {
			if n.status == ActionRun {
				running++
			}
		}

		status = m.styles.dim.Render("starting")
		if running > 0 {
			status = m.styles.running.Render(fmt.Sprintf("running %d", running))
		}
	}

	return title + "  " + status
}

func (m *tuiModel) renderProgress() string {
	const barWidth = 30

	done := m.total().Total
	total := max(len(m.cases), done, 1)
	filled := done * barWidth / total

	elapsed := time.Since(m.startTime)
	if !m.endTime.IsZero() {
		elapsed = m.endTime.Sub(m.startTime)
	}

	return fmt.Sprintf("%s %s%s %s",
		m.styles.dim.Render("["+formatDuration(elapsed)+"]"),
		m.styles.pass.Render(strings.Repeat("█", filled)),
		m.styles.dim.Render(strings.Repeat("░", barWidth-filled)),
		m.styles.muted.Render(fmt.Sprintf("%d/%d", done, len(m.cases))),
	)
}

func (m *tuiModel) renderNode(lines []string, n *treeNode, prefix string, isLast bool) []string {
	branch, indent := "├─ ", "│  "
	if isLast {
		branch, indent = "╰─ ", "   "
	}

	line := m.styles.dim.Render(prefix+branch) + m.symbol(n.state()) + " "

	switch n.kind {
	case kindTable:
		c := n.counts()
		line += m.styles.bold.Render(n.name) + m.styles.dim.Render(fmt.Sprintf("  %d/%d", c.Passed+c.Skipped, len(n.children)))
	default:
		line += n.name
		if n.status != "" && n.status != ActionRun {
			detail := formatDuration(n.elapsed)
			if n.alias != "" {
				detail = n.alias + " " + detail
			}

			line += m.styles.dim.Render("  [" + detail + "]")
		}
	}

	lines = append(lines, line)
	detail := m.styles.dim.Render(prefix + indent + "   ")

	if n.reason != "" {
		lines = append(lines, detail+m.styles.fail.Render(n.reason))
	}

	for _, issue := range n.issues {
		lines = append(lines, detail+"  "+m.styles.muted.Render(issue))
	}

	if n.status == ActionError && n.err != nil {
		lines = append(lines, detail+m.styles.fail.Render(n.err.Error()))
	}

	for i, child := range n.children {
		lines = m.renderNode(lines, child, prefix+indent, i == len(n.children)-1)
	}

	return lines
}

func (m *tuiModel) symbol(a Action) string {
	switch a {
	case ActionRun:
		return m.spinner.View()
	case ActionPass:
		return m.styles.pass.Render("✓")
	case ActionFail:
		return m.styles.fail.Render("✗")
	case ActionSkip:
		return m.styles.skip.Render("-")
	case ActionError:
		return m.styles.fail.Render("!")
	default:
		return m.styles.dim.Render("⋯")
	}
}

func (m *tuiModel) renderSummary() string {
	c := m.total()

	var parts []string

	if c.Passed > 0 {
		parts = append(parts, m.styles.pass.Render(fmt.Sprintf("%d passed", c.Passed)))
	}

	if c.Failed > 0 {
		parts = append(parts, m.styles.fail.Render(fmt.Sprintf("%d failed", c.Failed)))
	}

	if c.Skipped > 0 {
		parts = append(parts, m.styles.skip.Render(fmt.Sprintf("%d skipped", c.Skipped)))
	}

	if c.Errors > 0 {
		parts = append(parts, m.styles.fail.Render(fmt.Sprintf("%d errors", c.Errors)))
	}

	if len(parts) == 0 {
		return m.styles.dim.Render("  no cases run")
	}

	return "  " + strings.Join(parts, m.styles.dim.Render(" │ ")) + " " +
		m.styles.muted.Render(fmt.Sprintf("(%d total)", c.Total))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
