package dev

import (
	"context"
	"log/slog"
	"time"
)

// debounceAction is what the driver loop has to do after a transition.
type debounceAction int

const (
	actionNone debounceAction = iota
	actionSchedule
	actionBuild
)

// debounceState coalesces changes into build triggers.
//
// The first change after idle schedules a trigger. Changes before it fires
// only set changedDuringCooldown, which turns the trigger into one more
// cooldown instead of a build. Changes while a build runs are remembered and
// start a single new cooldown when the build returns.
type debounceState struct {
	pendingFirstChange    bool
	changedDuringCooldown bool
	building              bool
	changedDuringBuild    bool
}

func (s *debounceState) change() debounceAction {
	switch {
	case s.building:
		s.changedDuringBuild = true
		return actionNone
	case s.pendingFirstChange:
		s.changedDuringCooldown = true
		return actionNone
	default:
		s.pendingFirstChange = true
		return actionSchedule
	}
}

func (s *debounceState) fire() debounceAction {
	if s.changedDuringCooldown {
		s.changedDuringCooldown = false
		return actionSchedule
	}
	s.pendingFirstChange = false
	s.building = true
	return actionBuild
}

func (s *debounceState) built() debounceAction {
	s.building = false
	if s.changedDuringBuild {
		s.changedDuringBuild = false
		s.pendingFirstChange = true
		return actionSchedule
	}
	return actionNone
}

// start marks a build that runs without a preceding cooldown.
func (s *debounceState) start() debounceAction {
	s.building = true
	return actionBuild
}

// DebouncerConfig configures a Debouncer.
type DebouncerConfig struct {
	// Delay is the cooldown between the last change and a build.
	Delay time.Duration

	// BuildOnStart runs one build as soon as Run starts.
	BuildOnStart bool

	// After replaces time.After. Used by tests.
	After func(time.Duration) <-chan time.Time
}

// Debouncer turns a stream of changes into serialized build calls.
// Its state is only touched by the Run goroutine.
type Debouncer struct {
	config  DebouncerConfig
	build   func(context.Context)
	changes chan Change
	logger  *slog.Logger

	state debounceState
}

// NewDebouncer creates a debouncer that calls build for every trigger.
func NewDebouncer(config DebouncerConfig, build func(context.Context)) *Debouncer {
	if config.Delay <= 0 {
		config.Delay = 3 * time.Second
	}
	if config.After == nil {
		config.After = time.After
	}
	return &Debouncer{
		config:  config,
		build:   build,
		changes: make(chan Change, 256),
		logger:  slog.Default().With("component", "debounce"),
	}
}

// Notify reports a change. It never blocks. When the queue is full the change
// is represented by the ones already queued.
func (d *Debouncer) Notify(c Change) {
	select {
	case d.changes <- c:
	default:
	}
}

// Run drives the state machine until ctx is done. A build in progress when
// ctx ends sees the cancelled ctx, and Run returns only after it finishes.
func (d *Debouncer) Run(ctx context.Context) error {
	var timer <-chan time.Time
	done := make(chan struct{}, 1)

	apply := func(action debounceAction) {
		switch action {
		case actionSchedule:
			timer = d.config.After(d.config.Delay)
		case actionBuild:
			go func() {
				d.build(ctx)
				done <- struct{}{}
			}()
		}
	}

	if d.config.BuildOnStart {
		apply(d.state.start())
	}

	for {
		select {
		case <-ctx.Done():
			if d.state.building {
				<-done
				d.state.built()
			}
			return nil
		case c := <-d.changes:
			d.logger.Info("change detected", "path", c.Path, "op", c.Op)
			apply(d.state.change())
		case <-timer:
			timer = nil
			action := d.state.fire()
			if action == actionSchedule {
				d.logger.Debug("changes during cooldown, waiting again")
			}
			apply(action)
		case <-done:
			apply(d.state.built())
		}
	}
}
