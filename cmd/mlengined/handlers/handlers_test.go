package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
)

// statusOf is the status code an error handler would respond with err.
func statusOf(err error) int {
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return -1
}

func reasonOf(err error) string {
	var msg apierr.ErrorMessage
	if errors.As(err, &msg) {
		return msg.Reason
	}
	return ""
}

func decodeResponse[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not json: %s\n%s", err, resp.Body.String())
	}
	return v
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
