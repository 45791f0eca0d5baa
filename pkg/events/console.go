package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconRunning = "▶"
	IconBullet  = "•"
)

func LevelIcon(level Level) string {
	switch level {
	case LevelStep:
		return IconRunning
	case LevelSuccess:
		return IconSuccess
	case LevelWarning:
		return IconWarning
	case LevelError:
		return IconError
	case LevelInfo:
		return IconInfo
	default:
		return IconBullet
	}
}

// Theme holds the console styles per level.
type Theme struct {
	Step    lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Service lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultTheme builds the styles against r, so colors are dropped when the
// output is not a terminal.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	primary := lipgloss.Color("#7C3AED")   // Purple
	secondary := lipgloss.Color("#06B6D4") // Cyan
	success := lipgloss.Color("#22C55E")   // Green
	warning := lipgloss.Color("#EAB308")   // Yellow
	errorC := lipgloss.Color("#EF4444")    // Red
	muted := lipgloss.Color("#6B7280")     // Gray

	return Theme{
		Step:    r.NewStyle().Bold(true).Foreground(primary),
		Info:    r.NewStyle(),
		Success: r.NewStyle().Foreground(success),
		Warning: r.NewStyle().Bold(true).Foreground(warning),
		Error:   r.NewStyle().Bold(true).Foreground(errorC),
		Service: r.NewStyle().Foreground(secondary),
		Muted:   r.NewStyle().Foreground(muted),
	}
}

func (t Theme) forLevel(level Level) lipgloss.Style {
	switch level {
	case LevelStep:
		return t.Step
	case LevelSuccess:
		return t.Success
	case LevelWarning:
		return t.Warning
	case LevelError:
		return t.Error
	default:
		return t.Info
	}
}

// Printer renders events as single styled lines.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	theme Theme
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, theme: DefaultTheme(lipgloss.NewRenderer(w))}
}

func (p *Printer) Report(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := p.theme.forLevel(ev.Level)
	line := style.Render(LevelIcon(ev.Level))
	if ev.Service != "" {
		line += " " + p.theme.Service.Render("["+ev.Service+"]")
	}
	line += " " + style.Render(ev.Text)
	_, _ = fmt.Fprintln(p.w, line)
}

// RegisterConsolePrinter prints every run event published on bus.
func RegisterConsolePrinter(bus *Bus, p *Printer) {
	bus.AddHandler("democtl-console", TopicRunEvents, func(msg *message.Message) error {
		defer msg.Ack()

		// Undecodable messages are dropped; a nack would redeliver them forever.
		env, err := DecodeEnvelope(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("drop run event")
			return nil
		}
		if env.Type != TypeRunEvent {
			return nil
		}
		var ev Event
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			log.Warn().Err(errors.Wrap(err, "unmarshal run event")).Msg("drop run event")
			return nil
		}
		p.Report(ev)
		return nil
	})
}
