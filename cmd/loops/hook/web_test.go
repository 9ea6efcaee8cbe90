package hook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/opst/mlengine/cmd/loops/hook"
	cfg_hook "github.com/opst/mlengine/pkg/configs/hook"
	"github.com/opst/mlengine/pkg/utils/try"
)

type Value struct {
	Content string `json:"content"`
}

type server struct {
	status  int
	invoked atomic.Bool
	got     atomic.Value
}

func (s *server) start(t *testing.T) *url.URL {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.invoked.Store(true)
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		var v Value
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			t.Errorf("unexpected payload: %v", err)
		}
		s.got.Store(v.Content)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(s.status)
		w.Write([]byte("body"))
	}))
	t.Cleanup(svr.Close)
	return try.To(url.Parse(svr.URL)).OrFatal(t)
}

func TestWeb(t *testing.T) {
	type When struct {
		status1 int
		status2 int
	}
	type Then struct {
		invoked1 bool
		invoked2 bool
		err      error
	}

	for _, phase := range []string{"Before", "After"} {
		theory := func(when When, then Then) func(*testing.T) {
			return func(t *testing.T) {
				s1 := &server{status: when.status1}
				s2 := &server{status: when.status2}
				urls := []*url.URL{s1.start(t), s2.start(t)}

				testee := hook.Web[Value]{}
				call := testee.Before
				if phase == "Before" {
					testee.BeforeURL = urls
				} else {
					testee.AfterURL = urls
					call = testee.After
				}

				err := call(context.Background(), Value{Content: "hello"})
				if then.err == nil && err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if !errors.Is(err, then.err) {
					t.Errorf("want %v, got %v", then.err, err)
				}
				if s1.invoked.Load() != then.invoked1 || s2.invoked.Load() != then.invoked2 {
					t.Errorf(
						"invoked: (1, 2) = (%v, %v), want (%v, %v)",
						s1.invoked.Load(), s2.invoked.Load(), then.invoked1, then.invoked2,
					)
				}
				if s1.invoked.Load() && s1.got.Load() != "hello" {
					t.Errorf("unexpected payload: %v", s1.got.Load())
				}
			}
		}

		t.Run(phase+": Success All", theory(
			When{status1: http.StatusOK, status2: http.StatusNoContent},
			Then{invoked1: true, invoked2: true},
		))
		t.Run(phase+": Fail First", theory(
			When{status1: http.StatusNotFound, status2: http.StatusOK},
			Then{invoked1: true, invoked2: false, err: hook.ErrHookFailed},
		))
		t.Run(phase+": Fail Second", theory(
			When{status1: http.StatusOK, status2: http.StatusInternalServerError},
			Then{invoked1: true, invoked2: true, err: hook.ErrHookFailed},
		))
	}

	t.Run("it fails with unreachable url", func(t *testing.T) {
		testee := hook.Web[string]{
			BeforeURL: []*url.URL{try.To(url.Parse("http://somewhere.invalid")).OrFatal(t)},
		}
		if err := testee.Before(context.Background(), "hello"); !errors.Is(err, hook.ErrHookFailed) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it does nothing without urls", func(t *testing.T) {
		testee := hook.Build[Value](cfg_hook.WebHook{})
		if err := testee.Before(context.Background(), Value{}); err != nil {
			t.Error(err)
		}
		if err := testee.After(context.Background(), Value{}); err != nil {
			t.Error(err)
		}
	})
}

func TestFunc(t *testing.T) {
	t.Run("nil functions do nothing", func(t *testing.T) {
		testee := hook.Func[int]{}
		if err := testee.Before(context.Background(), 1); err != nil {
			t.Error(err)
		}
		if err := testee.After(context.Background(), 1); err != nil {
			t.Error(err)
		}
	})

	t.Run("errors are marked as ErrHookFailed", func(t *testing.T) {
		cause := errors.New("fake")
		testee := hook.Func[int]{
			BeforeFn: func(context.Context, int) error { return cause },
			AfterFn:  func(context.Context, int) error { return cause },
		}
		for _, err := range []error{
			testee.Before(context.Background(), 1),
			testee.After(context.Background(), 1),
		} {
			if !errors.Is(err, cause) || !errors.Is(err, hook.ErrHookFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}
	})
}
