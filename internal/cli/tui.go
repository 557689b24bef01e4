package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/nary/pkg/install"
	"github.com/matzehuels/nary/pkg/observability"
)

// Progress styles
var (
	progressNameStyle = lipgloss.NewStyle().Foreground(colorWhite)
	progressDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
	progressFailStyle = lipgloss.NewStyle().Foreground(colorRed)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// recentLimit is the number of finished packages listed under the counters.
const recentLimit = 6

// =============================================================================
// Messages
// =============================================================================

type (
	levelMsg struct {
		dir   string
		count int
	}
	installedMsg struct {
		name, version string
		took          time.Duration
	}
	skippedMsg struct{ name, version string }
	failedMsg  struct {
		name string
		err  error
	}
	doneMsg  struct{}
	frameMsg struct{}
)

// =============================================================================
// ProgressModel - live install view
// =============================================================================

// ProgressModel is the bubbletea model behind install --progress.
type ProgressModel struct {
	Dir       string
	Installed int
	Skipped   int
	Recent    []string
	Failed    string
	Done      bool
	Aborted   bool

	frame  int
	cancel context.CancelFunc
}

// NewProgressModel creates a progress model. cancel is called when the
// user aborts.
func NewProgressModel(cancel context.CancelFunc) ProgressModel {
	return ProgressModel{cancel: cancel}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case frameMsg:
		if m.Done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case levelMsg:
		m.Dir = msg.dir
	case installedMsg:
		m.Installed++
		m.push(fmt.Sprintf("%s@%s %s", msg.name, msg.version, progressDimStyle.Render(msg.took.Round(time.Millisecond).String())))
	case skippedMsg:
		m.Skipped++
	case failedMsg:
		m.Failed = msg.name + ": " + msg.err.Error()
	case doneMsg:
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *ProgressModel) push(line string) {
	m.Recent = append(m.Recent, line)
	if len(m.Recent) > recentLimit {
		m.Recent = m.Recent[len(m.Recent)-recentLimit:]
	}
}

func (m ProgressModel) View() string {
	var b strings.Builder

	head := styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
	if m.Done {
		head = styleIconSuccess.Render(iconSuccess)
	}
	b.WriteString(head + " " + StyleTitle.Render("Installing"))
	if m.Dir != "" {
		b.WriteString(" " + progressDimStyle.Render(m.Dir))
	}
	b.WriteString("\n")
	b.WriteString(progressDimStyle.Render(fmt.Sprintf("  %d installed · %d already satisfied", m.Installed, m.Skipped)))
	b.WriteString("\n")

	for _, line := range m.Recent {
		b.WriteString("  " + progressNameStyle.Render(line) + "\n")
	}
	if m.Failed != "" {
		b.WriteString(progressFailStyle.Render("  "+iconError+" "+m.Failed) + "\n")
	}
	if !m.Done {
		b.WriteString(progressDimStyle.Render("  q to abort") + "\n")
	}
	return b.String()
}

// =============================================================================
// Hook adapter
// =============================================================================

// progressHooks forwards installer events to a running program.
type progressHooks struct {
	observability.NoopInstallHooks
	send func(tea.Msg)
}

func (h progressHooks) OnLevelStart(_ context.Context, dir string, count int) {
	h.send(levelMsg{dir: dir, count: count})
}

func (h progressHooks) OnInstalled(_ context.Context, _, name, version string, d time.Duration) {
	h.send(installedMsg{name: name, version: version, took: d})
}

func (h progressHooks) OnSkipped(_ context.Context, _, name, version string) {
	h.send(skippedMsg{name: name, version: version})
}

func (h progressHooks) OnFailed(_ context.Context, _, name string, err error) {
	h.send(failedMsg{name: name, err: err})
}

type runResult struct {
	report *install.Report
	err    error
}

// runWithProgress runs fn while rendering its installer events.
func runWithProgress(ctx context.Context, fn func(context.Context) (*install.Report, error)) (*install.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(cancel), tea.WithOutput(os.Stderr))
	observability.SetInstallHooks(progressHooks{send: p.Send})
	defer observability.SetInstallHooks(observability.NoopInstallHooks{})

	results := make(chan runResult, 1)
	go func() {
		rep, err := fn(ctx)
		results <- runResult{report: rep, err: err}
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		res := <-results
		if res.err != nil {
			return nil, res.err
		}
		return nil, fmt.Errorf("progress view: %w", err)
	}
	res := <-results
	return res.report, res.err
}
