package runner

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/convexgen"
)

func tuiFixture() *Fixture {
	return &Fixture{
		Path: "users.yaml",
		Cases: []*Case{
			{Name: "ada", Table: "users"},
			{Name: "bob", Table: "users", Expect: ExpectValid},
			{Name: "hello", Table: "posts"},
		},
	}
}

func TestTUIModel_Tree(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := newTUIModel(newTUIStyles(&buf))
	m.addFixture(tuiFixture())

	view := m.FinalView()
	assert.Contains(t, view, "users.yaml")
	assert.Contains(t, view, "├─ ⋯ users  0/2")
	assert.Contains(t, view, "╰─ ⋯ posts  0/1")
	assert.Contains(t, view, "0/3")
	assert.Contains(t, view, "starting")

	m.Update(eventMsg{Action: ActionRun, Suite: "users.yaml", Table: "users", Case: "ada"})
	assert.Contains(t, m.FinalView(), "running 1")

	m.Update(eventMsg{Action: ActionPass, Suite: "users.yaml", Table: "users", Case: "ada", Alias: "ada"})
	m.Update(eventMsg{
		Action: ActionFail,
		Suite:  "users.yaml",
		Table:  "users",
		Case:   "bob",
		Expect: ExpectValid,
		Issues: []convexgen.Issue{emailIssue},
	})

	view = m.FinalView()
	assert.Contains(t, view, "✗ users  1/2")
	assert.Contains(t, view, "✓ ada  [ada <1ms]")
	assert.Contains(t, view, "✗ bob")
	assert.Contains(t, view, "expected valid document, rejected with 1 issue(s)")
	assert.Contains(t, view, emailIssue.String())
	assert.Contains(t, view, "2/3")
	assert.NotContains(t, view, "passed", "no summary before done")
}

func TestTUIModel_Done(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := newTUIModel(newTUIStyles(&buf))
	m.addFixture(tuiFixture())

	result := NewResult()

	for _, e := range []Event{
		{Action: ActionPass, Suite: "users.yaml", Table: "users", Case: "ada"},
		{Action: ActionError, Suite: "users.yaml", Table: "users", Case: "bob", Error: errors.New("store closed")},
	} {
		m.Update(eventMsg(e))
		result.Add(e)
	}

	result.Finish()
	m.Update(doneMsg{result: result})

	view := m.FinalView()
	assert.Contains(t, view, "FAIL")
	assert.Contains(t, view, "! bob")
	assert.Contains(t, view, "store closed")
	assert.Contains(t, view, "1 passed │ 1 errors (2 total)")
	assert.NotContains(t, view, "posts", "cases that never ran are dropped")
	assert.Len(t, m.cases, 2)
}

func TestTUIModel_UnknownCase(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := newTUIModel(newTUIStyles(&buf))
	m.Update(eventMsg{Action: ActionSkip, Suite: "extra.yaml", Table: "tags", Case: "later"})
	m.Update(doneMsg{result: nil})

	view := m.FinalView()
	assert.Contains(t, view, "extra.yaml")
	assert.Contains(t, view, "╰─ - later")
	assert.Contains(t, view, "PASS")
	assert.Contains(t, view, "1 skipped (1 total)")
}

func TestTUIModel_Ticks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := newTUIModel(newTUIStyles(&buf))

	_, cmd := m.Update(tickMsg{})
	assert.NotNil(t, cmd, "ticks continue while running")

	m.Update(doneMsg{})

	_, cmd = m.Update(tickMsg{})
	assert.Nil(t, cmd)
	assert.Contains(t, m.FinalView(), "no cases run")
}

func TestTUIFormatter_SummaryWithoutEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f := NewTUIFormatter(&buf, tuiFixture())

	result := NewResult()
	result.Finish()

	require.NoError(t, f.Summary(result))
	require.NoError(t, f.Format(Event{Action: ActionPass, Suite: "users.yaml", Table: "users", Case: "ada"}, result))

	got := buf.String()
	assert.Contains(t, got, "convexgen test  PASS")
	assert.Contains(t, got, "no cases run")
	assert.NotContains(t, got, "users.yaml")
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<1ms", formatDuration(500_000))
	assert.Equal(t, "12ms", formatDuration(12_000_000))
	assert.Equal(t, "1.5s", formatDuration(1_500_000_000))
	assert.Equal(t, "2m5s", formatDuration(125_000_000_000))
}
