package state

import (
	"fmt"
	"sync"
	"time"
)

type Phase int

const (
	IDLE Phase = iota
	RENDERING
	OUTPUT
	DONE
	ERROR
)

func (p Phase) String() string {
	switch p {
	case IDLE:
		return "idle"
	case RENDERING:
		return "rendering"
	case OUTPUT:
		return "output"
	case DONE:
		return "done"
	case ERROR:
		return "error"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := IDLE; candidate <= ERROR; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Running reports whether a job in this phase still holds the apply slot.
func (p Phase) Running() bool { return p == RENDERING || p == OUTPUT }

// Finished reports whether the phase ends a job.
func (p Phase) Finished() bool { return p == DONE || p == ERROR }

type ApplyInfo struct {
	JobID      string    `json:"jobId,omitempty"`
	Phase      Phase     `json:"phase"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	Err        string    `json:"error,omitempty"`
}

// RenderInfo describes the most recent live render, whoever triggered it.
type RenderInfo struct {
	At          time.Time `json:"at,omitzero"`
	Trigger     string    `json:"trigger,omitempty"`
	FailedTiles int       `json:"failedTiles"`
	Err         string    `json:"error,omitempty"`
}

type State struct {
	Apply      ApplyInfo  `json:"apply"`
	LastRender RenderInfo `json:"lastRender"`
}

// Store holds the process-wide status and fans changes out to subscribers.
type Store struct {
	mu    sync.RWMutex
	state State
	subs  map[int]chan State
	next  int
}

func NewStore() *Store {
	return &Store{state: State{Apply: ApplyInfo{Phase: IDLE}}, subs: make(map[int]chan State)}
}

func (store *Store) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

// SetPhase moves the current apply job along.
func (store *Store) SetPhase(phase Phase, percent int, message string) {
	store.mu.Lock()
	a := &store.state.Apply
	a.Phase = phase
	a.Percent = min(max(percent, 0), 100)
	a.Message = message
	store.publishLocked()
	store.mu.Unlock()
}

func (store *Store) UpdateApply(apply ApplyInfo) {
	store.mu.Lock()
	store.state.Apply = apply
	store.publishLocked()
	store.mu.Unlock()
}

func (store *Store) UpdateRender(info RenderInfo) {
	store.mu.Lock()
	store.state.LastRender = info
	store.publishLocked()
	store.mu.Unlock()
}

// Subscribe returns a channel that receives the state after every change,
// starting with the current one. A slow reader only misses intermediate
// states; the newest is always delivered. cancel must be called.
func (store *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	store.mu.Lock()
	id := store.next
	store.next++
	store.subs[id] = ch
	ch <- store.state
	store.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			store.mu.Lock()
			delete(store.subs, id)
			store.mu.Unlock()
		})
	}
	return ch, cancel
}

func (store *Store) publishLocked() {
	for _, ch := range store.subs {
		select {
		case <-ch:
		default:
		}
		ch <- store.state
	}
}
