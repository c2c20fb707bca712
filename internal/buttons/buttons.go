package buttons

import (
	"context"
	"sync"
)

type Event string

const (
	// Refresh renders and outputs the dashboard immediately.
	Refresh Event = "refresh"
	// NextPreset activates the next stored preset, wrapping around.
	NextPreset Event = "next_preset"
	Exit       Event = "exit"
)

type Buttons interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
}

type Logger interface {
	Infof(string, string, ...interface{})
	Errorf(string, string, ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, string, ...interface{})  {}
func (nopLogger) Errorf(string, string, ...interface{}) {}

type NoopButtons struct{ ch chan Event }

func NewNoopButtons() *NoopButtons { return &NoopButtons{ch: make(chan Event)} }

func (n *NoopButtons) Start(ctx context.Context) error { return nil }
func (n *NoopButtons) Stop() error                     { return nil }
func (n *NoopButtons) Events() <-chan Event            { return n.ch }

// Manual lets the simulator and tests press buttons in software.
type Manual struct {
	ch   chan Event
	once sync.Once
	done chan struct{}
}

func NewManual() *Manual {
	return &Manual{ch: make(chan Event, 4), done: make(chan struct{})}
}

func (m *Manual) Start(ctx context.Context) error { return nil }

func (m *Manual) Stop() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Manual) Events() <-chan Event { return m.ch }

// Press queues ev. It reports false when the queue is full or the source
// is stopped.
func (m *Manual) Press(ev Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.ch <- ev:
		return true
	default:
		return false
	}
}
