package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// PollMsg is a tea.Msg emitted each time the current view should be
// fetched again.
type PollMsg struct {
	At time.Time
}

// Poller emits PollMsg on a fixed interval and on demand.
type Poller struct {
	interval  time.Duration
	resultCh  chan PollMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
	lastPoll  time.Time
}

// New creates a Poller. A non-positive interval disables the ticker;
// RefreshNow still works.
func New(interval time.Duration) *Poller {
	return &Poller{
		interval:  interval,
		resultCh:  make(chan PollMsg, 1),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd waiting for
// the first PollMsg. Calling Start again returns nil; a stopped Poller
// does not restart.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.Wait()
}

// Stop halts the polling goroutine. Pending Wait commands return nil.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.running = false
}

// RefreshNow triggers a poll without waiting for the ticker.
func (p *Poller) RefreshNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A trigger is already pending.
	}
}

// LastPoll returns when the last PollMsg was emitted.
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

// Wait returns a tea.Cmd that blocks until the next PollMsg. It must be
// issued again after each PollMsg to keep listening.
func (p *Poller) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.resultCh:
			return msg
		case <-p.stopCh:
			return nil
		}
	}
}

func (p *Poller) loop() {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-tick:
			p.emit()
		case <-p.triggerCh:
			p.emit()
		}
	}
}

// emit publishes a PollMsg, coalescing with one not yet consumed.
func (p *Poller) emit() {
	now := time.Now()
	p.mu.Lock()
	p.lastPoll = now
	p.mu.Unlock()

	select {
	case p.resultCh <- PollMsg{At: now}:
	default:
	}
}
