// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// Configuration error codes. IsConfigurationError matches all of them.
const (
	CodeInvalidDimension = "CONFIG_INVALID_DIMENSION"
	CodeInvalidAction    = "CONFIG_INVALID_ACTION"
	CodeInvalidInterval  = "CONFIG_INVALID_INTERVAL"
	CodeInvalidName      = "CONFIG_INVALID_NAME"
)

// DefaultTick is the duration of one schedule tick.
const DefaultTick = 50 * time.Millisecond

// DefaultIntervalTicks is one in-game day.
const DefaultIntervalTicks = 24000

// Action is what a job does to its dimension on each tick.
type Action int

const (
	ActionOpen Action = iota
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// Open reports the state the action sets.
func (a Action) Open() bool { return a == ActionOpen }

// ParseAction converts "open" or "close" into an Action.
func ParseAction(token string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "open":
		return ActionOpen, nil
	case "close":
		return ActionClose, nil
	default:
		return 0, oops.In("schedule").
			Code(CodeInvalidAction).
			With("action", token).
			Errorf("invalid action %q: want open or close", token)
	}
}

// JobSpec is a job definition as it appears in configuration.
type JobSpec struct {
	Name          string
	Enabled       bool
	Dimension     string
	Action        string
	DelayTicks    int64
	IntervalTicks int64
}

// Job is a validated, runnable schedule job.
type Job struct {
	Name      string
	Dimension dimension.Dimension
	Action    Action
	Delay     time.Duration
	Interval  time.Duration
}

// Compile validates spec and converts its tick counts into durations.
// A delay of zero ticks fires after one tick.
func Compile(spec JobSpec, tick time.Duration) (Job, error) {
	if tick <= 0 {
		tick = DefaultTick
	}
	if strings.TrimSpace(spec.Name) == "" {
		return Job{}, oops.In("schedule").
			Code(CodeInvalidName).
			New("job name cannot be empty")
	}

	d, err := dimension.Parse(spec.Dimension)
	if err != nil {
		return Job{}, oops.In("schedule").
			Code(CodeInvalidDimension).
			With("job", spec.Name).
			With("dimension", spec.Dimension).
			Errorf("invalid dimension %q", spec.Dimension)
	}

	action, err := ParseAction(spec.Action)
	if err != nil {
		return Job{}, oops.In("schedule").With("job", spec.Name).Wrap(err)
	}

	if spec.IntervalTicks < 1 || spec.DelayTicks < 0 {
		return Job{}, oops.In("schedule").
			Code(CodeInvalidInterval).
			With("job", spec.Name).
			With("delay_ticks", spec.DelayTicks).
			With("interval_ticks", spec.IntervalTicks).
			New("interval must be at least one tick and delay non-negative")
	}

	delayTicks := max(spec.DelayTicks, 1)
	return Job{
		Name:      spec.Name,
		Dimension: d,
		Action:    action,
		Delay:     time.Duration(delayTicks) * tick,
		Interval:  time.Duration(spec.IntervalTicks) * tick,
	}, nil
}

// IsConfigurationError reports whether err rejects a job or command
// definition.
func IsConfigurationError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case CodeInvalidDimension, CodeInvalidAction, CodeInvalidInterval, CodeInvalidName:
		return true
	default:
		return false
	}
}
