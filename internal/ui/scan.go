package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/gemd/internal/discovery"
)

// ScanFunc performs a capsule scan.
type ScanFunc func(ctx context.Context) ([]*discovery.Capsule, error)

type scanCompleteMsg struct {
	capsules []*discovery.Capsule
	err      error
}

// ScanModel shows a spinner while a scan runs and quits when it finishes.
type ScanModel struct {
	Spinner  spinner.Model
	Label    string
	Capsules []*discovery.Capsule
	Err      error
	Done     bool

	ctx    context.Context
	cancel context.CancelFunc
	scan   ScanFunc
}

// NewScanModel creates a model that runs scan when the program starts.
func NewScanModel(ctx context.Context, label string, scan ScanFunc) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return ScanModel{
		Spinner: s,
		Label:   label,
		ctx:     ctx,
		cancel:  cancel,
		scan:    scan,
	}
}

func (m ScanModel) runScan() tea.Msg {
	capsules, err := m.scan(m.ctx)
	return scanCompleteMsg{capsules: capsules, err: err}
}

// Init implements tea.Model
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.runScan, m.Spinner.Tick)
}

// Update implements tea.Model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The scan returns what it has so far
			m.cancel()
		}
		return m, nil

	case scanCompleteMsg:
		m.cancel()
		m.Capsules = msg.capsules
		m.Err = msg.err
		m.Done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m ScanModel) View() string {
	if m.Done {
		return ""
	}
	return fmt.Sprintf("  %s %s %s\n", m.Spinner.View(), m.Label, MutedStyle.Render("(q to stop)"))
}

// RunScan runs scan with a spinner on interactive terminals and without
// one elsewhere, and returns the capsules found.
func RunScan(ctx context.Context, label string, scan ScanFunc, out io.Writer) ([]*discovery.Capsule, error) {
	if out == nil {
		out = os.Stdout
	}
	if !IsInteractive() {
		_, _ = fmt.Fprintln(out, label)
		return scan(ctx)
	}

	p := tea.NewProgram(NewScanModel(ctx, label, scan), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("scan display failed: %w", err)
	}
	m := final.(ScanModel)
	return m.Capsules, m.Err
}

// ScanLabel formats the progress line shown while scanning.
func ScanLabel(service string, timeout time.Duration) string {
	return fmt.Sprintf("Scanning for %s services (%s)...", service, timeout)
}
