package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/san-kum/reservoir/internal/reservoir"
)

const barWidth = 40

type progressMsg struct{ step, total int }

type doneMsg struct{ err error }

// progressModel shows the step counter of a long engine run.
type progressModel struct {
	title   string
	step    int
	total   int
	start   time.Time
	done    bool
	err     error
	aborted bool
}

func newProgressModel(title string) progressModel {
	return progressModel{title: title, start: time.Now()}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.step, m.total = msg.step, msg.total
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		if msg.err == nil {
			m.step = m.total
		}
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder
	sb.WriteString(Title.Render(m.title))
	sb.WriteString("\n\n")

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.step) / float64(m.total)
	}
	filled := int(frac * barWidth)
	sb.WriteString(barFull.Render(strings.Repeat("█", filled)))
	sb.WriteString(barEmpty.Render(strings.Repeat("░", barWidth-filled)))
	sb.WriteString(fmt.Sprintf(" %5.1f%%\n", frac*100))

	elapsed := time.Since(m.start)
	sb.WriteString(Metric("steps", fmt.Sprintf("%s/%s", humanize.Comma(int64(m.step)), humanize.Comma(int64(m.total)))))
	sb.WriteString("  ")
	sb.WriteString(Metric("elapsed", elapsed.Round(time.Millisecond).String()))
	if m.step > 0 && m.step < m.total {
		eta := time.Duration(float64(elapsed) / float64(m.step) * float64(m.total-m.step))
		sb.WriteString("  ")
		sb.WriteString(Metric("eta", eta.Round(time.Second).String()))
	}
	sb.WriteString("\n")

	switch {
	case m.err != nil:
		sb.WriteString(StatusFailed.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		sb.WriteString(StatusDone.Render("done") + "\n")
	default:
		sb.WriteString(Subtle.Render("q to abort") + "\n")
	}
	return sb.String()
}

// ErrAborted is returned by RunWithProgress when the user quits early.
var ErrAborted = errors.New("aborted by user")

// RunWithProgress runs job while a progress bar tracks the ProgressFunc it
// is given. Updates are throttled to roughly 200 per run. The context handed
// to job is cancelled when the user aborts, and RunWithProgress returns only
// after job has returned.
func RunWithProgress(ctx context.Context, title string, job func(ctx context.Context, progress reservoir.ProgressFunc) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title), opts...)
	done := make(chan struct{})

	go func() {
		defer close(done)
		every := 1
		err := job(ctx, func(step, total int) {
			if step == 1 && total > 200 {
				every = total / 200
			}
			if step%every == 0 || step == total {
				p.Send(progressMsg{step: step, total: total})
			}
		})
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return err
	}
	m := final.(progressModel)
	if m.aborted {
		cancel()
		<-done
		return ErrAborted
	}
	<-done
	return m.err
}
