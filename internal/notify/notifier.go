// Package notify renders classified exchange events and pipeline outcomes as
// operator-readable messages and fans them out to a delivery sink.
package notify

import "log"

// Notifier delivers a message to the operator channel. Implementations are
// fire-and-forget: delivery failures must be logged, never propagated.
type Notifier interface {
	Notify(text string)
}

// LogNotifier writes notifications to the process log. Used as the fallback
// sink when no messaging channel is configured, and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(text string) {
	log.Printf("notify: %s", text)
}

// Multi fans one notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(text string) {
	for _, n := range m {
		n.Notify(text)
	}
}
