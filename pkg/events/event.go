package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelStep    Level = "step"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one user-facing diagnostic line of a run.
type Event struct {
	At      time.Time `json:"at"`
	Level   Level     `json:"level"`
	Service string    `json:"service,omitempty"`
	Text    string    `json:"text"`
}

// Reporter receives run diagnostics. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(ev Event)
}

func emit(r Reporter, level Level, service, format string, args ...any) {
	if r == nil {
		return
	}
	r.Report(Event{At: time.Now(), Level: level, Service: service, Text: fmt.Sprintf(format, args...)})
}

func Step(r Reporter, service, format string, args ...any) {
	emit(r, LevelStep, service, format, args...)
}

func Info(r Reporter, service, format string, args ...any) {
	emit(r, LevelInfo, service, format, args...)
}

func Success(r Reporter, service, format string, args ...any) {
	emit(r, LevelSuccess, service, format, args...)
}

func Warn(r Reporter, service, format string, args ...any) {
	emit(r, LevelWarning, service, format, args...)
}

func Error(r Reporter, service, format string, args ...any) {
	emit(r, LevelError, service, format, args...)
}

// BusReporter publishes events on TopicRunEvents.
type BusReporter struct {
	Pub message.Publisher
}

func (b BusReporter) Report(ev Event) {
	env, err := NewEnvelope(TypeRunEvent, ev)
	if err != nil {
		log.Warn().Err(err).Msg("drop run event")
		return
	}
	raw, err := env.MarshalJSONBytes()
	if err != nil {
		log.Warn().Err(err).Msg("drop run event")
		return
	}
	if err := b.Pub.Publish(TopicRunEvents, message.NewMessage(watermill.NewUUID(), raw)); err != nil {
		log.Warn().Err(err).Str("text", ev.Text).Msg("publish run event")
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have the given level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Level == level {
			n++
		}
	}
	return n
}
