package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JijoJohny/SolGuard/internal/model"
)

func testReport() *model.AnalysisReport {
	r := model.NewReport()
	r.Vulnerabilities = []model.Vulnerability{
		{RuleID: "OWNER-CHECK", Severity: model.SeverityHigh, Title: "Missing Owner Check", Location: model.Location{File: "lib.rs", Line: 2, Column: 5}},
		{RuleID: "UNCHECKED-ARITHMETIC", Severity: model.SeverityMedium, Title: "Unchecked Arithmetic", Location: model.Location{File: "lib.rs", Line: 3, Column: 9}},
	}
	return r
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func TestCursorMovement(t *testing.T) {
	var m tea.Model = newViewer(testReport())
	m, _ = send(m, "j", "j", "j")
	if got := m.(viewer).cursor; got != 1 {
		t.Errorf("cursor = %d, want clamped to 1", got)
	}
	m, _ = send(m, "k", "k")
	if got := m.(viewer).cursor; got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
	if !strings.Contains(m.View(), "> High") {
		t.Errorf("view does not mark the cursor:\n%s", m.View())
	}
}

func TestDetailShowsSource(t *testing.T) {
	v := newViewer(testReport())
	v.readFile = func(string) ([]byte, error) {
		return []byte("fn f(a: AccountInfo) {\n    let d = a.data;\n    x + amount;\n}\n"), nil
	}
	var m tea.Model = v
	m, _ = send(m, "enter")
	view := m.View()
	if !strings.Contains(view, "> 2 |     let d = a.data;") {
		t.Errorf("detail view missing source context:\n%s", view)
	}
	m, _ = send(m, "esc")
	if m.(viewer).detail {
		t.Error("esc should leave the detail pane")
	}
}

func TestQuit(t *testing.T) {
	_, cmd := send(newViewer(testReport()), "q")
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestEmptyReport(t *testing.T) {
	var m tea.Model = newViewer(model.NewReport())
	m, _ = send(m, "enter", "j")
	if !strings.Contains(m.View(), "No vulnerabilities found") {
		t.Errorf("view = %s", m.View())
	}
}
