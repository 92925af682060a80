// Package calibration walks the user through an ordered set of fixation
// targets and feeds each confirmed fixation to the tracker as a training
// sample.
package calibration

import (
	"log/slog"
	"math/rand"

	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

// Phase is the sequencer's state tag.
type Phase int

const (
	// Idle means Begin has not been called.
	Idle Phase = iota
	// Intro shows the onboarding script.
	Intro
	// AwaitingPresses waits for confirm presses on the current target.
	AwaitingPresses
	// Transitioning shows an encouragement between targets; presses are ignored.
	Transitioning
	// Complete means every target reached its press count.
	Complete
)

func (p Phase) String() string {
	switch p {
	case Intro:
		return "intro"
	case AwaitingPresses:
		return "awaiting_presses"
	case Transitioning:
		return "transitioning"
	case Complete:
		return "complete"
	default:
		return "idle"
	}
}

// Trainer receives training samples. *gaze.Hub satisfies it.
type Trainer interface {
	RecordTrainingSample(x, y float64)
	ClearTrainingData()
}

// Positions resolves the live on-screen bounds of a target element.
// *region.Layout satisfies it.
type Positions interface {
	Get(id string) (region.Bounds, bool)
}

// state is the single tagged value describing where the sequencer is.
// Only the fields relevant to phase are meaningful.
type state struct {
	phase Phase

	introStep int // Intro

	target        int    // AwaitingPresses, Transitioning
	encouragement string // Transitioning
	settling      bool   // Transitioning: message shown, waiting out the delay
}

// Progress is the per-pass calibration record.
type Progress struct {
	CurrentIndex int
	Presses      int
	Completed    map[string]bool
}

func newProgress() Progress {
	return Progress{Completed: make(map[string]bool)}
}

// Sequencer is the calibration state machine. Use from the scheduler
// goroutine only.
type Sequencer struct {
	cfg       Config
	targets   []Target
	trainer   Trainer
	positions Positions
	sched     sched.Scheduler
	intn      func(n int) int
	logger    *slog.Logger

	onComplete func()
	onChange   func()

	st       state
	timer    sched.Timer // owned by st
	progress Progress

	introPlayed bool
	completed   bool // completion callback already fired this pass
	pool        []string

	feedback      bool
	feedbackTimer sched.Timer

	samples int // training samples recorded this pass
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the sequencer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// WithRand overrides the random source used to draw encouragements.
// intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Sequencer) {
		s.intn = intn
	}
}

// WithOnComplete registers the completion callback. It fires once per pass.
func WithOnComplete(fn func()) Option {
	return func(s *Sequencer) {
		s.onComplete = fn
	}
}

// WithOnChange registers fn to run after every visible change.
func WithOnChange(fn func()) Option {
	return func(s *Sequencer) {
		s.onChange = fn
	}
}

// New creates an idle sequencer. cfg must be valid.
func New(cfg Config, trainer Trainer, positions Positions, s sched.Scheduler, opts ...Option) *Sequencer {
	seq := &Sequencer{
		cfg:       cfg,
		targets:   Ordered(cfg.Targets),
		trainer:   trainer,
		positions: positions,
		sched:     s,
		intn:      rand.Intn,
		logger:    slog.Default().With("component", "calibration"),
		progress:  newProgress(),
	}
	for _, opt := range opts {
		opt(seq)
	}
	return seq
}

// enter is the single transition function. It cancels the timer owned by
// the state being left, installs next and runs its entry actions.
func (s *Sequencer) enter(next state) {
	s.timer = sched.StopTimer(s.timer)
	s.st = next

	switch next.phase {
	case Intro:
		s.timer = s.sched.AfterFunc(s.cfg.IntroStep, s.advanceIntro)

	case AwaitingPresses:
		s.progress.CurrentIndex = next.target
		s.progress.Presses = 0
		s.logger.Debug("awaiting presses", "target", s.targets[next.target].ID, "index", next.target)

	case Transitioning:
		if next.settling {
			s.timer = s.sched.AfterFunc(s.cfg.TransitionDelay, func() {
				s.enter(state{phase: AwaitingPresses, target: next.target + 1})
			})
		} else {
			s.timer = s.sched.AfterFunc(s.cfg.EncouragementDuration, s.afterEncouragement)
		}

	case Complete:
		s.progress.CurrentIndex = len(s.targets)
		s.logger.Info("calibration complete", "samples", s.samples)
	}

	s.changed()

	if next.phase == Complete && !s.completed {
		s.completed = true
		if s.onComplete != nil {
			s.onComplete()
		}
	}
}

func (s *Sequencer) advanceIntro() {
	s.timer = nil
	if next := s.st.introStep + 1; next < len(s.cfg.IntroScript) {
		s.enter(state{phase: Intro, introStep: next})
		return
	}
	s.enter(state{phase: AwaitingPresses, target: 0})
}

func (s *Sequencer) afterEncouragement() {
	s.timer = nil
	if s.st.target >= len(s.targets)-1 {
		s.enter(state{phase: Complete})
		return
	}
	s.enter(state{
		phase:         Transitioning,
		target:        s.st.target,
		encouragement: s.st.encouragement,
		settling:      true,
	})
}

// Begin starts the first pass: the intro script if it has not played yet,
// otherwise the first target. It does nothing unless the sequencer is idle.
func (s *Sequencer) Begin() {
	if s.st.phase != Idle {
		return
	}
	if s.cfg.SkipIntro || s.introPlayed || len(s.cfg.IntroScript) == 0 {
		s.introPlayed = true
		s.enter(state{phase: AwaitingPresses, target: 0})
		return
	}
	s.introPlayed = true
	s.logger.Info("calibration intro started")
	s.enter(state{phase: Intro, introStep: 0})
}

// Press handles a confirm press. It reports whether the press was consumed.
// A target whose element is not mounted yields feedback only: no sample and
// no count.
func (s *Sequencer) Press() bool {
	if s.st.phase != AwaitingPresses {
		return false
	}
	idx := s.st.target
	target := s.targets[idx]

	s.pulse()

	b, ok := s.positions.Get(target.ID)
	if !ok {
		s.logger.Debug("target not mounted, press ignored", "target", target.ID)
		s.changed()
		return true
	}

	x, y := b.Center()
	s.trainer.RecordTrainingSample(x, y)
	s.samples++
	s.progress.Presses++

	if s.progress.Presses < s.cfg.PressesPerTarget {
		s.changed()
		return true
	}

	s.progress.Completed[target.ID] = true
	s.logger.Info("target calibrated", "target", target.ID, "index", idx)
	s.enter(state{
		phase:         Transitioning,
		target:        idx,
		encouragement: s.nextEncouragement(),
	})
	return true
}

// pulse opens the per-press feedback window, restarting it if open.
func (s *Sequencer) pulse() {
	s.feedbackTimer = sched.StopTimer(s.feedbackTimer)
	s.feedback = true
	s.feedbackTimer = s.sched.AfterFunc(s.cfg.PressFeedback, func() {
		s.feedbackTimer = nil
		s.feedback = false
		s.changed()
	})
}

// nextEncouragement draws without replacement, refilling the pool once empty.
func (s *Sequencer) nextEncouragement() string {
	if len(s.cfg.Encouragements) == 0 {
		return ""
	}
	if len(s.pool) == 0 {
		s.pool = append(s.pool[:0], s.cfg.Encouragements...)
	}
	i := s.intn(len(s.pool))
	msg := s.pool[i]
	s.pool = append(s.pool[:i], s.pool[i+1:]...)
	return msg
}

// Reset is a hard restart: upstream training data is cleared, progress goes
// back to the first target with no presses, and pending timers are
// cancelled. The intro does not replay.
func (s *Sequencer) Reset() {
	s.trainer.ClearTrainingData()
	s.feedbackTimer = sched.StopTimer(s.feedbackTimer)
	s.feedback = false
	s.progress = newProgress()
	s.pool = nil
	s.completed = false
	s.samples = 0
	s.introPlayed = true

	s.logger.Info("calibration reset")
	s.enter(state{phase: AwaitingPresses, target: 0})
}

// Close cancels every pending timer. The sequencer is inert afterwards.
func (s *Sequencer) Close() {
	s.timer = sched.StopTimer(s.timer)
	s.feedbackTimer = sched.StopTimer(s.feedbackTimer)
	s.feedback = false
	s.st = state{phase: Idle}
}

func (s *Sequencer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Phase returns the current state tag.
func (s *Sequencer) Phase() Phase {
	return s.st.phase
}

// Targets returns the targets in visiting order.
func (s *Sequencer) Targets() []Target {
	out := make([]Target, len(s.targets))
	copy(out, s.targets)
	return out
}

// Progress returns a copy of the current pass record.
func (s *Sequencer) Progress() Progress {
	p := Progress{
		CurrentIndex: s.progress.CurrentIndex,
		Presses:      s.progress.Presses,
		Completed:    make(map[string]bool, len(s.progress.Completed)),
	}
	for id := range s.progress.Completed {
		p.Completed[id] = true
	}
	return p
}

// CurrentTarget returns the target awaiting or just finishing presses.
func (s *Sequencer) CurrentTarget() (Target, bool) {
	switch s.st.phase {
	case AwaitingPresses, Transitioning:
		return s.targets[s.st.target], true
	}
	return Target{}, false
}

// Snapshot is the presentation view of the sequencer.
type Snapshot struct {
	Phase         string   `json:"phase"`
	TargetID      string   `json:"target_id,omitempty"`
	TargetIndex   int      `json:"target_index"`
	TargetCount   int      `json:"target_count"`
	Presses       int      `json:"presses"`
	Required      int      `json:"required"`
	Completed     []string `json:"completed"`
	IntroLine     string   `json:"intro_line,omitempty"`
	Encouragement string   `json:"encouragement,omitempty"`
	Feedback      bool     `json:"feedback"`
}

// Snapshot returns the current presentation view.
func (s *Sequencer) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:       s.st.phase.String(),
		TargetIndex: s.progress.CurrentIndex,
		TargetCount: len(s.targets),
		Presses:     s.progress.Presses,
		Required:    s.cfg.PressesPerTarget,
		Completed:   make([]string, 0, len(s.progress.Completed)),
		Feedback:    s.feedback,
	}
	for _, t := range s.targets {
		if s.progress.Completed[t.ID] {
			snap.Completed = append(snap.Completed, t.ID)
		}
	}
	if t, ok := s.CurrentTarget(); ok {
		snap.TargetID = t.ID
	}
	switch s.st.phase {
	case Intro:
		snap.IntroLine = s.cfg.IntroScript[s.st.introStep]
	case Transitioning:
		if !s.st.settling {
			snap.Encouragement = s.st.encouragement
		}
	}
	return snap
}
