package tui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/report"
	"github.com/JijoJohny/SolGuard/internal/util"
)

const contextRadius = 3

type viewer struct {
	items    []model.Vulnerability
	warnings []model.Warning
	cursor   int
	detail   bool
	height   int
	sources  map[string][]string
	readFile func(string) ([]byte, error)
}

func newViewer(r *model.AnalysisReport) viewer {
	return viewer{
		items:    r.Vulnerabilities,
		warnings: r.Warnings,
		height:   20,
		sources:  map[string][]string{},
		readFile: os.ReadFile,
	}
}

func (m viewer) Init() tea.Cmd { return nil }

func (m viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.detail && msg.String() == "esc" {
				m.detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			if len(m.items) > 0 {
				m.cursor = len(m.items) - 1
			}
		case "enter", " ":
			if len(m.items) > 0 {
				m.detail = !m.detail
				if m.detail {
					m.load(m.items[m.cursor].Location.File)
				}
			}
		}
	}
	return m, nil
}

// load caches the lines of file for the detail pane. The map is shared
// between model copies, so a file is read once.
func (m viewer) load(file string) {
	if _, ok := m.sources[file]; ok {
		return
	}
	b, err := m.readFile(file)
	if err != nil {
		m.sources[file] = nil
		return
	}
	m.sources[file] = util.SplitLines(b)
}

func (m viewer) View() string {
	var b strings.Builder
	s := report.Summarize(&model.AnalysisReport{Vulnerabilities: m.items})
	fmt.Fprintf(&b, "SolGuard: %d vulnerabilities (%d critical, %d high, %d medium, %d low), %d warnings\n\n",
		s.TotalIssues, s.Critical, s.High, s.Medium, s.Low, len(m.warnings))
	if len(m.items) == 0 {
		b.WriteString("No vulnerabilities found.\n\nq: quit\n")
		return b.String()
	}
	if m.detail {
		v := m.items[m.cursor]
		fmt.Fprintf(&b, "[%s] %s (%s)\n%s\n\n%s\n\nRecommendation: %s\n", v.Severity.Title(), v.Title, v.RuleID, v.Location, v.Description, v.Recommendation)
		if lines := m.sources[v.Location.File]; lines != nil {
			fmt.Fprintf(&b, "\n%s\n", util.ExtractSnippet(lines, v.Location.Line, contextRadius))
		} else if v.Snippet != "" {
			fmt.Fprintf(&b, "\n%s\n", v.Snippet)
		}
		b.WriteString("\nenter/esc: back  q: quit\n")
		return b.String()
	}
	rows := m.height - 5
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.items) {
		end = len(m.items)
	}
	for i := start; i < end; i++ {
		v := m.items[i]
		mark := "  "
		if i == m.cursor {
			mark = "> "
		}
		fmt.Fprintf(&b, "%s%-8s %-22s %s\n", mark, v.Severity.Title(), v.RuleID, v.Location)
	}
	b.WriteString("\nj/k: move  enter: details  q: quit\n")
	return b.String()
}

// Run shows r in an interactive list until the user quits.
func Run(r *model.AnalysisReport) error {
	p := tea.NewProgram(newViewer(r))
	_, err := p.Run()
	return err
}
