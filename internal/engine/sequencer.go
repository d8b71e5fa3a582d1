package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/conclave/internal/decision"
	"github.com/rendis/conclave/internal/expressions"
	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/internal/validation"
	"github.com/rendis/conclave/pkg/schema"
)

// DefaultFailureMessage is appended as the error step when a script does not
// override it.
const DefaultFailureMessage = "An error occurred. Please try again."

// Runner is the surface presentation layers drive: start a run, resolve its
// decision, and observe it through snapshots.
type Runner interface {
	Start(ctx context.Context, task string) (string, error)
	Choose(ctx context.Context, choice int) error
	Snapshot() schema.RunState
	Wait(ctx context.Context) error
}

// Config tunes a Sequencer.
type Config struct {
	// Pace multiplies every scripted pause. 0 disables pauses.
	Pace   float64
	Hub    streaming.EventHub // nil disables change notifications
	Logger *slog.Logger
	Clock  func() time.Time
}

// DefaultConfig paces runs at the scripted speed.
func DefaultConfig() Config {
	return Config{Pace: 1}
}

// Sequencer is the phase driver: a generic interpreter that walks a Script,
// appending steps to the live run and blocking once at its decision gate.
type Sequencer struct {
	script *schema.Script
	hub    streaming.EventHub
	logger *slog.Logger
	clock  func() time.Time
	pacer  Pacer

	fsm    *RunFSM
	interp *expressions.Interpolator
	guards *expressions.CELEngine
	jq     *expressions.GoJQEngine
	log    *runLog

	baseCtx context.Context
	stop    context.CancelFunc

	// mu guards the fields below.
	mu      sync.Mutex
	running bool
	closed  bool
	gate    *Gate
	done    chan struct{}
}

// NewSequencer validates script and builds a Sequencer for it.
func NewSequencer(script *schema.Script, cfg Config) (*Sequencer, error) {
	sv, err := validation.NewScriptValidator()
	if err != nil {
		return nil, err
	}
	if err := sv.ValidateScript(script); err != nil {
		return nil, err
	}

	guards, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(logging.NewCorrelationHandler(slog.NewTextHandler(os.Stderr, nil)))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	var publisher EventPublisher
	if cfg.Hub != nil {
		publisher = cfg.Hub
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Sequencer{
		script:  script,
		hub:     cfg.Hub,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		pacer:   Pacer{Multiplier: cfg.Pace},
		fsm:     NewRunFSM(publisher),
		interp:  expressions.NewInterpolator(expressions.NewExprEngine()),
		guards:  guards,
		jq:      expressions.NewGoJQEngine(),
		log:     newRunLog(),
		baseCtx: baseCtx,
		stop:    stop,
	}, nil
}

// Script returns the script being interpreted.
func (s *Sequencer) Script() *schema.Script { return s.script }

// FSM exposes the run state machine so callers can attach hooks.
func (s *Sequencer) FSM() *RunFSM { return s.fsm }

// Start begins a new run for task and returns its ID without waiting for it.
// It fails with VALIDATION_ERROR on a blank task and CONFLICT while another
// run is active; neither changes the live run.
func (s *Sequencer) Start(ctx context.Context, task string) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "task must not be empty")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", schema.NewError(schema.ErrCodeCancelled, "sequencer is closed")
	}
	if s.running {
		runID := s.log.snapshot().RunID
		s.mu.Unlock()
		return "", schema.NewErrorf(schema.ErrCodeConflict, "run %s is still active", runID).
			WithDetails(map[string]any{"run_id": runID})
	}

	runID := uuid.NewString()
	s.log.reset(runID, task, s.now())
	s.running = true
	s.gate = nil
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	runCtx := logging.WithRunID(s.baseCtx, runID)
	if err := s.transition(runCtx, runID, schema.RunStatusRunning, map[string]any{"task": task}); err != nil {
		s.log.finish(s.now())
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
		return "", err
	}

	logging.LogWith(runCtx, s.logger).InfoContext(ctx, "run started", "task", task, "phases", len(s.script.Phases))
	go s.drive(runCtx, runID, done)
	return runID, nil
}

// Choose resolves the open decision gate with the zero-based option index.
func (s *Sequencer) Choose(ctx context.Context, choice int) error {
	s.mu.Lock()
	g := s.gate
	s.mu.Unlock()

	if g == nil {
		return schema.NewError(schema.ErrCodeNoPendingDecision, "no decision is pending")
	}
	if err := g.Resolve(choice); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "decision resolved", "choice", choice)
	return nil
}

// Snapshot returns a deep copy of the live run.
func (s *Sequencer) Snapshot() schema.RunState {
	return s.log.snapshot()
}

// Query evaluates a jq expression against the current snapshot.
func (s *Sequencer) Query(ctx context.Context, query string) (any, error) {
	return s.jq.Query(ctx, query, s.Snapshot())
}

// Running reports whether a run is in flight.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the current run, if any, has finished.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts any in-flight run and waits for its cleanup. Further Start
// calls fail.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	s.closed = true
	done := s.done
	s.mu.Unlock()

	s.stop()
	if done != nil {
		<-done
	}
	return nil
}

func (s *Sequencer) drive(ctx context.Context, runID string, done chan struct{}) {
	defer close(done)
	err := s.execute(ctx, runID)
	s.finish(ctx, runID, err)
}

// execute walks every phase. Panics are converted to errors so the caller
// always reaches finish.
func (s *Sequencer) execute(ctx context.Context, runID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for pi := range s.script.Phases {
		phase := &s.script.Phases[pi]
		s.setPhase(ctx, runID, phase.Label)
		for si := range phase.Steps {
			if err := s.runStep(ctx, runID, &phase.Steps[si]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequencer) runStep(ctx context.Context, runID string, tmpl *schema.StepTemplate) error {
	scope := expressions.NewScope(s.log.snapshot())

	ok, err := s.guards.Guard(ctx, tmpl.When, scope)
	if err != nil {
		return err
	}
	if !ok {
		s.publish(ctx, runID, "", schema.EventStepSkipped, map[string]any{"phase": tmpl.Phase, "when": tmpl.When})
		return nil
	}

	if tmpl.Disagreement != nil {
		if err := s.awaitDecision(ctx, runID, tmpl); err != nil {
			return err
		}
		return s.pause(ctx, tmpl.Pause)
	}

	content, err := s.interp.Render(ctx, tmpl.Content, scope)
	if err != nil {
		return err
	}
	step, _ := s.appendStep(ctx, runID, schema.WorkflowStep{
		Phase:   tmpl.Phase,
		Type:    tmpl.Type,
		Agent:   tmpl.Agent,
		Role:    tmpl.Role,
		Action:  tmpl.Action,
		Content: content,
	})

	if tmpl.Context != nil {
		text, err := s.interp.Render(ctx, tmpl.Context.Content, scope)
		if err != nil {
			return schema.NewError(schema.ErrCodeInterpolation, "render context entry").WithStep(step.ID).WithCause(err)
		}
		s.appendContext(ctx, runID, schema.ContextEntry{
			Agent:   tmpl.Context.Agent,
			Role:    tmpl.Context.Role,
			Content: text,
		})
	}
	return s.pause(ctx, tmpl.Pause)
}

// awaitDecision appends the user_input_needed step, opens the gate and
// blocks until it is resolved.
func (s *Sequencer) awaitDecision(ctx context.Context, runID string, tmpl *schema.StepTemplate) error {
	d := &schema.DisagreementData{
		Topic:   tmpl.Disagreement.Topic,
		Options: append([]schema.DecisionOption(nil), tmpl.Disagreement.Options...),
	}
	stepType := tmpl.Type
	if stepType == "" {
		stepType = schema.StepTypeUserInputNeeded
	}
	step, idx := s.appendStep(ctx, runID, schema.WorkflowStep{
		Phase:        tmpl.Phase,
		Type:         stepType,
		Content:      tmpl.Content,
		Disagreement: d,
	})

	g := newGate(idx, d)
	s.mu.Lock()
	s.gate = g
	s.mu.Unlock()

	s.log.openDecision(idx)
	payload := decision.BuildContext(s.log.snapshot())
	if err := s.transition(ctx, runID, schema.RunStatusAwaitingDecision, payload); err != nil {
		return err
	}

	log := logging.LogWith(logging.WithStepID(ctx, step.ID), s.logger)
	log.InfoContext(ctx, "awaiting decision", "topic", d.Topic, "options", len(d.Options))

	choice, err := g.Wait(ctx)
	if err != nil {
		return err
	}
	s.log.resolveDecision(choice)

	opt := d.Options[choice]
	if err := s.transition(ctx, runID, schema.RunStatusRunning, map[string]any{
		"choice":   choice,
		"agent":    opt.Agent,
		"position": opt.Position,
	}); err != nil {
		return err
	}
	log.InfoContext(ctx, "decision applied", "choice", choice, "position", opt.Position)
	return nil
}

// finish converts a failure into the terminal error step and always clears
// the running flag and phase label.
func (s *Sequencer) finish(ctx context.Context, runID string, runErr error) {
	ctx = context.WithoutCancel(ctx)
	log := logging.LogWith(ctx, s.logger)

	if runErr != nil {
		failure := schema.NewError(schema.ErrCodeRunFailure, "run failed").WithCause(runErr)
		log.ErrorContext(ctx, "run failed", "error", failure.Error(), "cause", runErr.Error())

		msg := s.script.FailureMessage
		if msg == "" {
			msg = DefaultFailureMessage
		}
		s.appendStep(ctx, runID, schema.WorkflowStep{
			Phase:   schema.PhaseError,
			Type:    schema.StepTypeError,
			Content: msg,
		})
		if err := s.transition(ctx, runID, schema.RunStatusFailed, map[string]any{"error": runErr.Error()}); err != nil {
			log.WarnContext(ctx, "failed run transition rejected", "error", err)
			s.log.setStatus(schema.RunStatusFailed)
		}
	} else {
		if err := s.transition(ctx, runID, schema.RunStatusCompleted, nil); err != nil {
			log.WarnContext(ctx, "completed run transition rejected", "error", err)
			s.log.setStatus(schema.RunStatusFailed)
		}
	}

	s.log.finish(s.now())
	s.publish(ctx, runID, "", schema.EventPhaseChanged, map[string]any{"label": ""})

	s.mu.Lock()
	s.running = false
	if s.gate != nil {
		if _, ok := s.gate.Resolved(); !ok {
			s.gate = nil
		}
	}
	s.mu.Unlock()

	snap := s.log.snapshot()
	log.InfoContext(ctx, "run finished", "status", snap.Status, "steps", len(snap.Steps))
}

// transition moves the live run to `to` through the FSM and records it.
func (s *Sequencer) transition(ctx context.Context, runID string, to schema.RunStatus, payload any) error {
	from := s.log.status()
	if err := s.fsm.Transition(context.WithoutCancel(ctx), runID, from, to, payload); err != nil {
		return err
	}
	s.log.setStatus(to)
	return nil
}

func (s *Sequencer) appendStep(ctx context.Context, runID string, step schema.WorkflowStep) (schema.WorkflowStep, int) {
	step.ID = "step-" + uuid.NewString()
	step.Timestamp = s.now()
	idx := s.log.appendStep(step)

	stepCtx := logging.WithStepID(ctx, step.ID)
	if step.Agent != "" {
		stepCtx = logging.WithAgent(stepCtx, string(step.Agent))
	}
	logging.LogWith(stepCtx, s.logger).DebugContext(ctx, "step appended", "phase", step.Phase, "type", step.Type)
	s.publish(ctx, runID, step.ID, schema.EventStepAppended, step.Clone())
	return step, idx
}

func (s *Sequencer) appendContext(ctx context.Context, runID string, entry schema.ContextEntry) {
	entry.Timestamp = s.now()
	s.log.appendContext(entry)
	s.publish(ctx, runID, "", schema.EventContextAppended, entry)
}

func (s *Sequencer) setPhase(ctx context.Context, runID, label string) {
	s.log.setPhase(label)
	s.publish(ctx, runID, "", schema.EventPhaseChanged, map[string]any{"label": label})
}

func (s *Sequencer) pause(ctx context.Context, pause string) error {
	d, err := ParsePause(pause)
	if err != nil {
		return err
	}
	return s.pacer.Pause(ctx, d)
}

func (s *Sequencer) publish(ctx context.Context, runID, stepID, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	err := s.hub.Publish(context.WithoutCancel(ctx), streaming.StreamEvent{
		RunID:     runID,
		StepID:    stepID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "publish failed", "event", eventType, "error", err)
	}
}

func (s *Sequencer) now() time.Time {
	return s.clock().UTC()
}

var _ Runner = (*Sequencer)(nil)
