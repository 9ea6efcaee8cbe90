package echoutil_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/opst/mlengine/pkg/echoutil"
)

func TestSetLevel(t *testing.T) {
	for name, want := range map[string]log.Lvl{
		"debug":   log.DEBUG,
		"INFO":    log.INFO,
		"warn":    log.WARN,
		"":        log.WARN,
		"error":   log.ERROR,
		"off":     log.OFF,
		"verbose": log.WARN,
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.Logger.SetOutput(&bytes.Buffer{})
			echoutil.SetLevel(e, name)
			if got := e.Logger.Level(); got != want {
				t.Errorf("level: got %v, want %v", got, want)
			}
		})
	}
}

func TestLogHandlerFunc(t *testing.T) {
	buf := &bytes.Buffer{}
	e := echo.New()
	e.Logger.SetOutput(buf)
	e.Logger.SetLevel(log.INFO)

	wantErr := errors.New("boom")
	h := echoutil.LogHandlerFunc(func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusTeapot)
		return wantErr
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := h(c); !errors.Is(err, wantErr) {
		t.Errorf("error is not passed through: %v", err)
	}

	logs := buf.String()
	for _, want := range []string{"< request", "GET /api/health/", "status = 418", "boom"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log does not contain %q:\n%s", want, logs)
		}
	}
}
