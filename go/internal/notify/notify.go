// Package notify carries user-facing notifications out of the core.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is one message shown to the user
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Reporter is the notification sink
type Reporter interface {
	Notify(n Notification)
}

// Info reports an informational message
func Info(r Reporter, msg string) {
	if r != nil {
		r.Notify(Notification{Level: LevelInfo, Message: msg})
	}
}

// Error reports err and returns it so callers can report and return in one step
func Error(r Reporter, err error) error {
	if r != nil && err != nil {
		r.Notify(Notification{Level: LevelError, Message: err.Error()})
	}
	return err
}

// LogReporter writes notifications through the global logger
type LogReporter struct {
	UserID string
}

func (l LogReporter) Notify(n Notification) {
	var ev = log.Info()
	switch n.Level {
	case LevelWarn:
		ev = log.Warn()
	case LevelError:
		ev = log.Error()
	}
	ev.Str("user_id", l.UserID).Msg(n.Message)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Errors returns the messages of recorded error notifications
func (r *Recorder) Errors() []string {
	var out []string
	for _, n := range r.All() {
		if n.Level == LevelError {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset drops all recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
