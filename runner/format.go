package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/rlch/convexgen"
)

// Formatter renders test events and results.
type Formatter interface {
	Format(event Event, result *Result) error
	Summary(result *Result) error
}

// FormatHandler is a Handler that delegates to a Formatter.
type FormatHandler struct {
	formatter Formatter
	stderr    io.Writer
}

// NewFormatHandler creates a handler that formats events.
func NewFormatHandler(f Formatter, stderr io.Writer) *FormatHandler {
	return &FormatHandler{formatter: f, stderr: stderr}
}

// Event formats the event.
func (h *FormatHandler) Event(_ context.Context, event Event, result *Result) error {
	return h.formatter.Format(event, result)
}

// Err writes to stderr.
func (h *FormatHandler) Err(text string) error {
	_, err := h.stderr.Write([]byte(text + "\n"))

	return err
}

// Summary renders the final summary.
func (h *FormatHandler) Summary(result *Result) error {
	return h.formatter.Summary(result)
}

// writeIssues prints a failed case's reason and each validation issue below
// it at the given indent.
func writeIssues(w io.Writer, indent string, reason string, issues []convexgen.Issue) {
	if reason != "" {
		_, _ = fmt.Fprintf(w, "%s%s\n", indent, reason)
	}

	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "%s  %s\n", indent, issue)
	}
}

func tally(c Counts) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped, %d errors", c.Passed, c.Failed, c.Skipped, c.Errors)
}

// DotsFormatter prints one character per case and the failures at the end.
type DotsFormatter struct {
	w     io.Writer
	count int
}

func NewDotsFormatter(w io.Writer) *DotsFormatter {
	return &DotsFormatter{w: w}
}

const lineWidth = 80

var dots = map[Action]string{
	ActionPass:  ".",
	ActionFail:  "F",
	ActionSkip:  "S",
	ActionError: "E",
}

func (d *DotsFormatter) Format(event Event, _ *Result) error {
	char, ok := dots[event.Action]
	if !ok {
		return nil
	}

	_, err := fmt.Fprint(d.w, char)

	if d.count++; d.count%lineWidth == 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	return err
}

func (d *DotsFormatter) Summary(result *Result) error {
	if d.count%lineWidth != 0 {
		_, _ = fmt.Fprintln(d.w)
	}

	_, _ = fmt.Fprintln(d.w)

	for _, cr := range result.FailedCases() {
		if cr.Status == ActionError {
			_, _ = fmt.Fprintf(d.w, "ERROR %s (%s): %v\n\n", cr.Name(), cr.Location(), cr.Error)
			continue
		}

		_, _ = fmt.Fprintf(d.w, "FAIL %s (%s)\n", cr.Name(), cr.Location())
		writeIssues(d.w, "  ", cr.Reason, cr.Issues)
		_, _ = fmt.Fprintln(d.w)
	}

	status := "PASS"
	if !result.Ok() {
		status = "FAIL"
	}

	c := result.Snapshot()
	_, err := fmt.Fprintf(d.w, "%s %d cases, %s in %s\n",
		status, c.Total, tally(c), result.Elapsed().Round(time.Millisecond))

	return err
}

// VerboseFormatter prints every case as it starts and ends, go test style,
// and a per-table breakdown in the summary.
type VerboseFormatter struct {
	w io.Writer
}

func NewVerboseFormatter(w io.Writer) *VerboseFormatter {
	return &VerboseFormatter{w: w}
}

func (v *VerboseFormatter) Format(event Event, _ *Result) error {
	name := event.Name()

	switch event.Action {
	case ActionRun:
		_, _ = fmt.Fprintf(v.w, "=== RUN   %s\n", name)
	case ActionPass:
		_, _ = fmt.Fprintf(v.w, "--- PASS: %s (%s)\n", name, event.Elapsed)

		if event.Alias != "" {
			_, _ = fmt.Fprintf(v.w, "    saved %s = %s\n", event.Alias, event.DocID)
		}
	case ActionFail:
		_, _ = fmt.Fprintf(v.w, "--- FAIL: %s (%s)\n", name, event.Elapsed)
		writeIssues(v.w, "    ", event.Reason(), event.Issues)
	case ActionSkip:
		_, _ = fmt.Fprintf(v.w, "--- SKIP: %s (%s)\n", name, event.Elapsed)
	case ActionError:
		_, _ = fmt.Fprintf(v.w, "--- ERROR: %s (%s)\n    %v\n", name, event.Elapsed, event.Error)
	}

	return nil
}

func (v *VerboseFormatter) Summary(result *Result) error {
	status := "PASS"
	if !result.Ok() {
		status = "FAIL"
	}

	_, _ = fmt.Fprintf(v.w, "\n%s\n", status)

	for _, table := range result.TableNames() {
		_, _ = fmt.Fprintf(v.w, "  %-12s %s\n", table, tally(result.TableCounts(table)))
	}

	c := result.Snapshot()
	_, err := fmt.Fprintf(v.w, "  %d total in %s\n", c.Total, result.Elapsed().Round(time.Millisecond))

	return err
}

// JSONFormatter writes one JSON object per event and a final summary object.
type JSONFormatter struct {
	enc *json.Encoder
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w)}
}

type jsonIssue struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message"`
}

type jsonEvent struct {
	Time    string      `json:"time"`
	Action  string      `json:"action"`
	Suite   string      `json:"suite,omitempty"`
	Table   string      `json:"table"`
	Case    string      `json:"case"`
	Line    int         `json:"line,omitempty"`
	Elapsed float64     `json:"elapsed,omitempty"`
	Expect  string      `json:"expect,omitempty"`
	ID      string      `json:"id,omitempty"`
	Alias   string      `json:"alias,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Error   string      `json:"error,omitempty"`
	Issues  []jsonIssue `json:"issues,omitempty"`
}

func (j *JSONFormatter) Format(event Event, _ *Result) error {
	je := jsonEvent{
		Time:   event.Time.Format(time.RFC3339Nano),
		Action: string(event.Action),
		Suite:  event.Suite,
		Table:  event.Table,
		Case:   event.Case,
		Line:   event.Line,
		Expect: string(event.Expect),
		ID:     string(event.DocID),
		Alias:  event.Alias,
		Reason: event.Reason(),
	}

	if event.Action.IsTerminal() {
		je.Elapsed = event.Elapsed.Seconds()
	}

	if event.Error != nil {
		je.Error = event.Error.Error()
	}

	for _, issue := range event.Issues {
		je.Issues = append(je.Issues, jsonIssue(issue))
	}

	return j.enc.Encode(je)
}

type jsonCounts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type jsonSummary struct {
	Action string `json:"action"`
	jsonCounts
	Tables  map[string]jsonCounts `json:"tables,omitempty"`
	Saved   map[string]string     `json:"saved,omitempty"`
	Elapsed float64               `json:"elapsed"`
	Ok      bool                  `json:"ok"`
}

func (j *JSONFormatter) Summary(result *Result) error {
	summary := jsonSummary{
		Action:     "summary",
		jsonCounts: jsonCounts(result.Snapshot()),
		Tables:     make(map[string]jsonCounts),
		Elapsed:    result.Elapsed().Seconds(),
		Ok:         result.Ok(),
	}

	for _, table := range result.TableNames() {
		summary.Tables[table] = jsonCounts(result.TableCounts(table))
	}

	for alias, id := range result.SavedIDs() {
		if summary.Saved == nil {
			summary.Saved = make(map[string]string)
		}

		summary.Saved[alias] = string(id)
	}

	return j.enc.Encode(summary)
}

// PrettyFormatter prints one colored line per case under a header for each
// fixture file, then the failures and a per-table tally.
type PrettyFormatter struct {
	w     io.Writer
	suite string

	pass, fail, skip, dim, bold lipgloss.Style
}

// NewPrettyFormatter builds the styles for w. Colors are dropped when w is
// not a terminal.
func NewPrettyFormatter(w io.Writer) *PrettyFormatter {
	r := lipgloss.NewRenderer(w)

	return &PrettyFormatter{
		w:    w,
		pass: r.NewStyle().Foreground(lipgloss.Color("#04B575")),
		fail: r.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		skip: r.NewStyle().Foreground(lipgloss.Color("#D7AF00")),
		dim:  r.NewStyle().Foreground(lipgloss.Color("#626262")),
		bold: r.NewStyle().Bold(true),
	}
}

func (p *PrettyFormatter) mark(a Action) string {
	switch a {
	case ActionPass:
		return p.pass.Render("✓")
	case ActionFail:
		return p.fail.Render("✗")
	case ActionSkip:
		return p.skip.Render("-")
	case ActionError:
		return p.fail.Render("!")
	default:
		return ""
	}
}

func (p *PrettyFormatter) Format(event Event, _ *Result) error {
	if !event.Action.IsTerminal() {
		return nil
	}

	if event.Suite != p.suite {
		p.suite = event.Suite
		_, _ = fmt.Fprintln(p.w, p.bold.Render(event.Suite))
	}

	detail := event.Elapsed.Round(time.Microsecond).String()
	if event.Alias != "" {
		detail = event.Alias + " " + detail
	}

	_, err := fmt.Fprintf(p.w, "  %s %s %s\n", p.mark(event.Action), event.Name(), p.dim.Render(detail))

	return err
}

func (p *PrettyFormatter) Summary(result *Result) error {
	failed := result.FailedCases()
	if len(failed) > 0 {
		_, _ = fmt.Fprintln(p.w)
	}

	for _, cr := range failed {
		_, _ = fmt.Fprintf(p.w, "%s %s %s\n", p.fail.Render(string(cr.Status)), cr.Name(), p.dim.Render(cr.Location()))
		writeIssues(p.w, "    ", cr.Reason, cr.Issues)

		if cr.Status == ActionError {
			_, _ = fmt.Fprintf(p.w, "    %v\n", cr.Error)
		}
	}

	_, _ = fmt.Fprintln(p.w)

	for _, table := range result.TableNames() {
		c := result.TableCounts(table)
		_, _ = fmt.Fprintf(p.w, "  %s %s\n", p.mark(okAction(c)), p.dim.Render(table+": "+tally(c)))
	}

	status := p.pass.Render("PASS")
	if !result.Ok() {
		status = p.fail.Render("FAIL")
	}

	_, err := fmt.Fprintf(p.w, "%s %s %s\n", status, tally(result.Snapshot()),
		p.dim.Render("in "+result.Elapsed().Round(time.Millisecond).String()))

	return err
}

func okAction(c Counts) Action {
	if c.Ok() {
		return ActionPass
	}

	return ActionFail
}

// NewFormatter creates a formatter by name. An empty name picks pretty output
// for terminals and dots otherwise. The tui format lists the cases of fixtures
// up front and falls back to pretty output when w is not a terminal.
func NewFormatter(name string, w io.Writer, fixtures ...*Fixture) Formatter {
	if name == "" {
		name = convexgen.FormatDots
		if isTerminal(w) {
			name = convexgen.FormatPretty
		}
	}

	switch name {
	case convexgen.FormatVerbose:
		return NewVerboseFormatter(w)
	case convexgen.FormatJSON:
		return NewJSONFormatter(w)
	case convexgen.FormatPretty:
		return NewPrettyFormatter(w)
	case convexgen.FormatTUI:
		if isTerminal(w) {
			return NewTUIFormatter(w, fixtures...)
		}

		return NewPrettyFormatter(w)
	default:
		return NewDotsFormatter(w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
