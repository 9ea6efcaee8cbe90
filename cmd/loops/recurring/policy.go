package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/opst/mlengine/pkg/loop"
	"github.com/robfig/cron/v3"
)

// ParsePolicy parses `forever[:COOLDOWN]`, `backlog` or `cron:SPEC`.
//
// SPEC is a standard 5-field cron expression, or a descriptor like "@hourly".
func ParsePolicy(s string) (Policy, error) {
	typ, param, ok := strings.Cut(s, ":")
	switch typ {
	case "forever":
		if !ok || param == "" {
			return Forever(0), nil
		}

		period, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse: %s as "forever:COOLDOWN": %w`, s, err)
		}
		return Forever(period), nil
	case "backlog":
		if ok {
			return nil, fmt.Errorf("backlog policy does not take paramters: %s", s)
		}
		return Backlog(), nil
	case "cron":
		if !ok || strings.TrimSpace(param) == "" {
			return nil, fmt.Errorf(`cron policy requires schedule: %s (should be "cron:SPEC")`, s)
		}
		return Cron(strings.TrimSpace(param))
	}
	return nil, fmt.Errorf("unknown policy name: %s (should be one of -- forever|backlog|cron)", typ)
}

// Policy decides what a loop does after each run of its task.
type Policy interface {
	// Next is called with whether the task has processed something, and its error.
	Next(updated bool, err error) loop.Next
	String() string
}

// Restart immediately while there are things to do.
// Otherwise, restart after interval.
func Forever(intervalWaitingBacklog time.Duration) Policy {
	return forever(intervalWaitingBacklog)
}

type forever time.Duration

func (f forever) String() string {
	return fmt.Sprintf("forever:%s", time.Duration(f).String())
}

func (f forever) Next(updated bool, err error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Restart immediately while there are things to do.
// Otherwise, Break(nil).
func Backlog() Policy {
	return backlogPolicy{}
}

type backlogPolicy struct{}

func (backlogPolicy) String() string {
	return "backlog"
}

func (backlogPolicy) Next(updated bool, err error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Break(nil)
}

// Restart immediately while there are things to do.
// Otherwise, wait for the next time in the schedule.
func Cron(spec string) (Policy, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron schedule %q: %w", spec, err)
	}
	return cronPolicy{spec: spec, schedule: sched, now: time.Now}, nil
}

type cronPolicy struct {
	spec     string
	schedule cron.Schedule
	now      func() time.Time
}

func (c cronPolicy) String() string {
	return "cron:" + c.spec
}

func (c cronPolicy) Next(updated bool, err error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.ContinueAt(c.schedule.Next(c.now()))
}

// UntilError breaks the loop when the task returns an error. Otherwise, it follows p.
func UntilError(p Policy) Policy {
	return untilError{base: p}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return fmt.Sprintf("%s (until error)", u.base.String())
}

func (u untilError) Next(updated bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(updated, err)
}
