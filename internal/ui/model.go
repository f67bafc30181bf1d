// ABOUTME: Bubbletea model for the bridge dashboard
// ABOUTME: Shows channel, burst, fence, queue and mixer state with volume and delay keys
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/livelink-go/internal/listener"
	"github.com/Resonate-Protocol/livelink-go/internal/player"
	"github.com/Resonate-Protocol/livelink-go/pkg/livelink"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

const (
	refreshInterval = 250 * time.Millisecond
	volumeStep      = 5
	delayStep       = 10
)

// Controller applies the dashboard's key commands
type Controller interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	SetDelay(ch protocol.Channel, ms int)
}

// StatusFunc returns the current source status
type StatusFunc func() livelink.Status

// Model represents the TUI state
type Model struct {
	title  string
	status StatusFunc
	ctrl   Controller

	// Latest snapshot
	snapshot livelink.Status

	// Playback
	volume int
	muted  bool

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	quitting bool
}

type tickMsg time.Time

// StatusMsg replaces the displayed snapshot
type StatusMsg livelink.Status

// NewModel creates a new TUI model. ctrl may be nil.
func NewModel(title string, status StatusFunc, ctrl Controller) Model {
	return Model{
		title:  title,
		status: status,
		ctrl:   ctrl,
		volume: 100,
	}
}

// WithVolume sets the initial volume and mute state
func (m Model) WithVolume(volume int, muted bool) Model {
	m.volume = volume
	m.muted = muted
	return m
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.status != nil {
			m.snapshot = m.status()
		}
		return m, tickEvery()
	case StatusMsg:
		m.snapshot = livelink.Status(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up":
		m.volume = clamp(m.volume+volumeStep, 0, 100)
		m.apply(func(c Controller) { c.SetVolume(m.volume) })
	case "down":
		m.volume = clamp(m.volume-volumeStep, 0, 100)
		m.apply(func(c Controller) { c.SetVolume(m.volume) })
	case "m":
		m.muted = !m.muted
		m.apply(func(c Controller) { c.SetMuted(m.muted) })
	case "]":
		m.snapshot.AnimationDelayMs = m.adjustDelay(protocol.ChannelAnimation, m.snapshot.AnimationDelayMs+delayStep)
	case "[":
		m.snapshot.AnimationDelayMs = m.adjustDelay(protocol.ChannelAnimation, m.snapshot.AnimationDelayMs-delayStep)
	case "}":
		m.snapshot.AudioDelayMs = m.adjustDelay(protocol.ChannelAudio, m.snapshot.AudioDelayMs+delayStep)
	case "{":
		m.snapshot.AudioDelayMs = m.adjustDelay(protocol.ChannelAudio, m.snapshot.AudioDelayMs-delayStep)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) apply(fn func(Controller)) {
	if m.ctrl != nil {
		fn(m.ctrl)
	}
}

func (m Model) adjustDelay(ch protocol.Channel, ms int) int {
	ms = clamp(ms, 0, livelink.MaxDelayMs)
	m.apply(func(c Controller) { c.SetDelay(ch, ms) })
	return ms
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down bridge...\n"
	}

	var b strings.Builder
	st := m.snapshot

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	field(&b, "Source: ", st.ID)
	field(&b, "Uptime: ", st.Uptime.Round(time.Second).String())
	field(&b, "Sample rate: ", fmt.Sprintf("%d Hz", st.SampleRate))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Channels"))
	b.WriteString("\n")
	b.WriteString(renderChannel(st.Audio, st.Player.Audio, st.AudioDelayMs))
	b.WriteString(renderChannel(st.Animation, st.Player.Animation, st.AnimationDelayMs))
	b.WriteString("\n")

	fence := valueStyle.Render(fmt.Sprintf("%08b", st.Player.Fence))
	if st.Player.Fence != player.FenceOpen {
		fence = warnStyle.Render(fmt.Sprintf("%08b (burst open)", st.Player.Fence))
	}
	b.WriteString(headerStyle.Render("Fence: "))
	b.WriteString(fence)
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Mixer"))
	b.WriteString("\n")
	field(&b, "  Format: ", formatOrNone(st))
	field(&b, "  Segments: ", fmt.Sprintf("%d (%s buffered)", st.Mixer.Segments, humanBytes(st.Mixer.BufferedBytes)))
	field(&b, "  Underruns: ", fmt.Sprintf("%d  Dropped: %s  Rate mismatches: %d",
		st.Mixer.Underruns, humanBytes(int(st.Mixer.BytesDropped)), st.Mixer.RateMismatches))

	muteText := ""
	if m.muted {
		muteText = " (muted)"
	}
	field(&b, "  Volume: ", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteText))
	b.WriteString("\n")

	field(&b, "Subjects: ", fmt.Sprintf("%d  Decoded: %d  Failed: %d", st.Subjects, st.FramesDecoded, st.FramesFailed))

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Debug"))
		b.WriteString("\n")
		field(&b, "  Resets: ", fmt.Sprintf("%d", st.Player.Resets))
		field(&b, "  Reassembly: ", fmt.Sprintf("audio %d B, animation %d B pending", st.Audio.Buffered, st.Animation.Buffered))
		field(&b, "  Rendered: ", fmt.Sprintf("%d samples in %d renders", st.Mixer.SamplesRendered, st.Mixer.Renders))
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("↑/↓:Volume  m:Mute  [/]:Anim delay  {/}:Audio delay  d:Debug  q:Quit"))
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func renderChannel(ls listener.Status, ps player.ChannelStats, delayMs int) string {
	conn := offStyle.Render("waiting")
	if ls.Connected {
		conn = onStyle.Render("connected " + ls.Remote)
	}

	burst := offStyle.Render("idle")
	if ls.InBurst {
		burst = onStyle.Render("burst")
		if ls.FPS > 0 {
			burst = onStyle.Render(fmt.Sprintf("burst @%d fps", ls.FPS))
		}
	}

	return fmt.Sprintf("  %-10s %s  %s  delay %dms\n             rx %d  played %d  dropped %d  queued %d  fence waits %d\n",
		ls.Channel, conn, burst, delayMs,
		ps.Received, ps.Played, ps.Dropped, ps.Queued, ps.FenceWaits)
}

func formatOrNone(st livelink.Status) string {
	if st.Mixer.Format.SamplesPerSecond == 0 {
		return "none"
	}
	return st.Mixer.Format.String()
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
