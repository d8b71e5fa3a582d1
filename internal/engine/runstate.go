package engine

import (
	"sync"
	"time"

	"github.com/rendis/conclave/pkg/schema"
)

// runLog owns the single live RunState. The driver is the only writer;
// readers only ever receive deep copies.
type runLog struct {
	mu    sync.RWMutex
	state schema.RunState
}

func newRunLog() *runLog {
	return &runLog{state: schema.RunState{Status: schema.RunStatusIdle}}
}

// reset discards the previous run in full and starts an empty one.
func (l *runLog) reset(runID, task string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = schema.RunState{
		RunID:     runID,
		Task:      task,
		Status:    schema.RunStatusIdle,
		Steps:     []schema.WorkflowStep{},
		Context:   []schema.ContextEntry{},
		IsRunning: true,
		StartedAt: &now,
	}
}

// appendStep adds step to the log and returns its index.
func (l *runLog) appendStep(step schema.WorkflowStep) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Steps = append(l.state.Steps, step.Clone())
	return len(l.state.Steps) - 1
}

func (l *runLog) appendContext(entry schema.ContextEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Context = append(l.state.Context, entry)
}

func (l *runLog) setPhase(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.CurrentPhase = label
}

func (l *runLog) status() schema.RunStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Status
}

func (l *runLog) setStatus(s schema.RunStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Status = s
}

func (l *runLog) openDecision(stepIndex int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := stepIndex
	l.state.PendingDecision = &idx
}

func (l *runLog) resolveDecision(choice int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := choice
	l.state.Choice = &c
	l.state.PendingDecision = nil
}

// finish runs on every exit path of the driver.
func (l *runLog) finish(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.IsRunning = false
	l.state.CurrentPhase = ""
	l.state.PendingDecision = nil
	l.state.FinishedAt = &now
}

func (l *runLog) snapshot() schema.RunState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneState(l.state)
}

func cloneState(s schema.RunState) schema.RunState {
	out := s
	if s.Steps != nil {
		out.Steps = make([]schema.WorkflowStep, len(s.Steps))
		for i, st := range s.Steps {
			out.Steps[i] = st.Clone()
		}
	}
	if s.Context != nil {
		out.Context = make([]schema.ContextEntry, len(s.Context))
		copy(out.Context, s.Context)
	}
	out.PendingDecision = cloneInt(s.PendingDecision)
	out.Choice = cloneInt(s.Choice)
	out.StartedAt = cloneTime(s.StartedAt)
	out.FinishedAt = cloneTime(s.FinishedAt)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
