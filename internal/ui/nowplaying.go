// Package ui renders the now-playing overlay: a Bubble Tea program that
// mirrors the session controller's state and translates key presses into
// transport commands.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tversen/flick/internal/domain"
	"github.com/tversen/flick/internal/queue"
	"github.com/tversen/flick/internal/session"
)

const (
	seekStep       = 10.0
	volumeStep     = 5
	refreshEvery   = 500 * time.Millisecond
	commandTimeout = 30 * time.Second
)

// SnapshotMsg carries a controller state change into the program. Wire it
// up with controller.Subscribe and program.Send.
type SnapshotMsg session.Snapshot

type tickMsg time.Time

// Model is the now-playing Bubble Tea model
type Model struct {
	controller *session.Controller
	logger     *slog.Logger
	keys       KeyMap
	bar        progress.Model

	snap     session.Snapshot
	volume   int
	muted    bool
	width    int
	height   int
	showHelp bool
	quitting bool
}

// NewModel creates the now-playing model over a session controller
func NewModel(controller *session.Controller, logger *slog.Logger) Model {
	bar := progress.New(
		progress.WithSolidFill(string(Amber)),
		progress.WithoutPercentage(),
	)
	return Model{
		controller: controller,
		logger:     logger,
		keys:       DefaultKeyMap(),
		bar:        bar,
		snap:       controller.Snapshot(),
		volume:     100,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-16, 72)
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, nil

	case tickMsg:
		// Poll too; position advances between event-driven updates
		m.applySnapshot(m.controller.Snapshot())
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) applySnapshot(snap session.Snapshot) {
	m.snap = snap
	m.volume = snap.Volume
	m.muted = snap.Muted
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Sequence(m.command(func() error { return m.controller.Stop() }), tea.Quit)

	case key.Matches(msg, m.keys.TogglePause):
		return m, m.command(m.controller.TogglePause)

	case key.Matches(msg, m.keys.SeekBack):
		return m, m.command(func() error { return m.controller.SeekBy(-seekStep) })

	case key.Matches(msg, m.keys.SeekForward):
		return m, m.command(func() error { return m.controller.SeekBy(seekStep) })

	case key.Matches(msg, m.keys.Next):
		return m, m.command(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return m.controller.Next(ctx)
		})

	case key.Matches(msg, m.keys.Previous):
		return m, m.command(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return m.controller.Previous(ctx)
		})

	case key.Matches(msg, m.keys.Skip):
		return m, m.command(func() error {
			_, err := m.controller.SkipSegment()
			return err
		})

	case key.Matches(msg, m.keys.VolumeUp):
		return m, m.command(func() error { return m.controller.SetVolume(m.volume + volumeStep) })

	case key.Matches(msg, m.keys.VolumeDown):
		return m, m.command(func() error { return m.controller.SetVolume(m.volume - volumeStep) })

	case key.Matches(msg, m.keys.Mute):
		muted := m.muted
		return m, m.command(func() error { return m.controller.SetMuted(!muted) })

	case key.Matches(msg, m.keys.Favorite):
		return m, m.command(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return m.controller.ToggleFavorite(ctx)
		})

	case key.Matches(msg, m.keys.Shuffle):
		q := m.controller.Queue()
		if q.Shuffled() {
			q.Unshuffle()
		} else {
			q.Shuffle()
		}
		return m, nil

	case key.Matches(msg, m.keys.Repeat):
		q := m.controller.Queue()
		q.SetRepeatMode(nextRepeatMode(q.RepeatMode()))
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}
	return m, nil
}

// command runs a transport call off the update loop; failures are logged,
// the UI reflects them through the next snapshot
func (m Model) command(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			m.logger.Warn("transport command failed", "error", err)
		}
		return nil
	}
}

func nextRepeatMode(mode queue.RepeatMode) queue.RepeatMode {
	switch mode {
	case queue.RepeatNone:
		return queue.RepeatAll
	case queue.RepeatAll:
		return queue.RepeatOne
	default:
		return queue.RepeatNone
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.titleLine())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.progressLine())
	b.WriteString("\n")

	if cue := m.activeCue(); cue != "" {
		b.WriteString("\n")
		b.WriteString(CueStyle.Render(cue))
		b.WriteString("\n")
	}

	if seg, ok := m.controller.CurrentSkipSegment(); ok {
		b.WriteString("\n")
		b.WriteString(SkipPromptStyle.Render(fmt.Sprintf("Skip %s [s]", strings.ToLower(seg.Type.String()))))
		b.WriteString("\n")
	}

	if m.snap.Err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Playback failed: " + m.snap.Err.Error()))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.helpLines())
	} else {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render("space pause · ←/→ seek · n/p track · ? help · q quit"))
	}

	overlay := OverlayStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}
	return overlay
}

func (m Model) titleLine() string {
	if !m.snap.HaveItem {
		return DimStyle.Render("Nothing playing")
	}
	item := m.snap.Item
	title := TitleStyle.Render(item.DisplayTitle())
	if item.UserState.Favorite {
		title += " " + FavoriteBadge.Render("♥")
	}
	return title
}

func (m Model) statusLine() string {
	parts := []string{stateLabel(m.snap)}
	if m.snap.HaveItem {
		parts = append(parts, MethodBadge.Render(m.snap.Method.String()))
	}
	if m.muted {
		parts = append(parts, DimStyle.Render("muted"))
	} else {
		parts = append(parts, DimStyle.Render(fmt.Sprintf("vol %d%%", m.volume)))
	}
	q := m.controller.Queue()
	if q.Shuffled() {
		parts = append(parts, AccentStyle.Render("shuffle"))
	}
	switch q.RepeatMode() {
	case queue.RepeatAll:
		parts = append(parts, AccentStyle.Render("repeat all"))
	case queue.RepeatOne:
		parts = append(parts, AccentStyle.Render("repeat one"))
	}
	return strings.Join(parts, "  ")
}

func stateLabel(snap session.Snapshot) string {
	if snap.Buffering {
		return AccentStyle.Render("Buffering…")
	}
	switch snap.State {
	case domain.StateLoading:
		return AccentStyle.Render("Loading…")
	case domain.StatePlaying:
		return SubtitleStyle.Render("Playing")
	case domain.StatePaused:
		return SubtitleStyle.Render("Paused")
	case domain.StateEnded:
		return DimStyle.Render("Ended")
	case domain.StateStopped:
		return DimStyle.Render("Stopped")
	default:
		return DimStyle.Render("Idle")
	}
}

func (m Model) progressLine() string {
	position := m.snap.PositionSeconds
	duration := m.snap.DurationSeconds

	ratio := 0.0
	if duration > 0 {
		ratio = position / duration
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := m.bar.ViewAs(ratio)
	times := DimStyle.Render(fmt.Sprintf(" %s / %s", formatClock(position), formatClock(duration)))
	return bar + times
}

func (m Model) activeCue() string {
	position := time.Duration(m.snap.PositionSeconds * float64(time.Second))
	for _, cue := range m.snap.SubtitleCues {
		if position >= cue.Start && position < cue.End {
			return cue.Text
		}
	}
	return ""
}

func (m Model) helpLines() string {
	bindings := []key.Binding{
		m.keys.TogglePause, m.keys.SeekBack, m.keys.SeekForward,
		m.keys.Next, m.keys.Previous, m.keys.Skip,
		m.keys.VolumeUp, m.keys.VolumeDown, m.keys.Mute,
		m.keys.Favorite, m.keys.Shuffle, m.keys.Repeat,
		m.keys.Quit,
	}
	var lines []string
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("%s  %s", AccentStyle.Render(fmt.Sprintf("%-8s", h.Key)), DimStyle.Render(h.Desc)))
	}
	return strings.Join(lines, "\n")
}

// formatClock renders seconds as h:mm:ss or m:ss
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	mnt := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%d:%02d", mnt, s)
}
