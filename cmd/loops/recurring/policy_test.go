package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/mlengine/cmd/loops/recurring"
	"github.com/opst/mlengine/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        string
		expectError bool
	}{
		"forever means forever": {
			when: "forever",
			then: "forever:0s",
		},
		"forever:3s means forever with cooldown 3 seconds": {
			when: "forever:3s",
			then: "forever:3s",
		},
		"forever:someday can not be parsed (someday is not time.Duration)": {
			when:        "forever:someday",
			expectError: true,
		},
		"backlog means backlog": {
			when: "backlog",
			then: "backlog",
		},
		"backlog:param can not be parsed (it should not take any parameters)": {
			when:        "backlog:param",
			expectError: true,
		},
		"cron:SPEC means cron schedule": {
			when: "cron:*/5 * * * *",
			then: "cron:*/5 * * * *",
		},
		"cron:@hourly is accepted": {
			when: "cron:@hourly",
			then: "cron:@hourly",
		},
		"cron without schedule can not be parsed": {
			when:        "cron",
			expectError: true,
		},
		"cron with broken schedule can not be parsed": {
			when:        "cron:every minute",
			expectError: true,
		},
		"empty string can not be parsed (it is not policy)": {
			when:        "",
			expectError: true,
		},
		"unknown policy can not be parsed": {
			when:        "???????unknown??????",
			expectError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := recurring.ParsePolicy(testcase.when)

			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occur")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual.String() != testcase.then {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", actual, testcase.then)
			}
		})
	}
}

func TestPolicy_Next(t *testing.T) {
	cronPolicy, err := recurring.Cron("@every 1h")
	if err != nil {
		t.Fatal(err)
	}

	for name, testcase := range map[string]struct {
		policy  recurring.Policy
		updated bool
		err     error
		then    string
	}{
		"forever continues immediately when updated": {
			policy: recurring.Forever(time.Minute), updated: true,
			then: loop.Continue(0).String(),
		},
		"forever cools down when not updated": {
			policy: recurring.Forever(time.Minute), updated: false,
			then: loop.Continue(time.Minute).String(),
		},
		"backlog continues immediately when updated": {
			policy: recurring.Backlog(), updated: true,
			then: loop.Continue(0).String(),
		},
		"backlog breaks when not updated": {
			policy: recurring.Backlog(), updated: false,
			then: loop.Break(nil).String(),
		},
		"cron continues immediately when updated": {
			policy: cronPolicy, updated: true,
			then: loop.Continue(0).String(),
		},
		"forever ignores error": {
			policy: recurring.Forever(time.Second), err: errors.New("fake"),
			then: loop.Continue(time.Second).String(),
		},
		"UntilError breaks with error": {
			policy: recurring.UntilError(recurring.Forever(time.Second)), err: errors.New("fake"),
			then: loop.Break(errors.New("fake")).String(),
		},
		"UntilError follows base policy without error": {
			policy: recurring.UntilError(recurring.Backlog()), updated: true,
			then: loop.Continue(0).String(),
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := testcase.policy.Next(testcase.updated, testcase.err)
			if actual.String() != testcase.then {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", actual, testcase.then)
			}
		})
	}

	t.Run("cron waits for the next schedule when not updated", func(t *testing.T) {
		next := cronPolicy.Next(false, nil)
		if next.String() == loop.Continue(0).String() {
			t.Errorf("it does not wait: %s", next)
		}
	})
}

func TestTask_Applied(t *testing.T) {
	counter := recurring.Task[int](func(_ context.Context, v int) (int, bool, error) {
		return v + 1, v+1 < 3, nil
	})

	actual, err := loop.Start(context.Background(), 0, counter.Applied(recurring.Backlog()))
	if err != nil {
		t.Fatal(err)
	}
	if actual != 3 {
		t.Errorf("unexpected count: %d", actual)
	}
}
