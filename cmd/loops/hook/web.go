package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	cfg_hook "github.com/opst/mlengine/pkg/configs/hook"
)

// Web is a webhook POSTing the value as JSON.
//
// URLs are called in order. A hook succeeds if and only if all of them respond 2xx;
// the first failure stops calling the rest.
type Web[T any] struct {
	BeforeURL []*url.URL
	AfterURL  []*url.URL

	// Client sends requests. http.DefaultClient is used when nil.
	Client *http.Client
}

// Build creates a webhook from its configuration.
func Build[T any](cfg cfg_hook.WebHook) Web[T] {
	return Web[T]{BeforeURL: cfg.Before, AfterURL: cfg.After}
}

func (w Web[T]) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

func (w Web[T]) send(ctx context.Context, u *url.URL, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHookFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHookFailed, err)
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ctype, "text/") || strings.Contains(ctype, "json") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"%w (%s %d, Content-Type: %s): %s",
			ErrHookFailed, u, resp.StatusCode, ctype, string(body),
		)
	}
	return fmt.Errorf("%w (%s %d, Content-Type: %s)", ErrHookFailed, u, resp.StatusCode, ctype)
}

func (w Web[T]) hook(ctx context.Context, value T, urls []*url.URL) error {
	if len(urls) == 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if err := w.send(ctx, u, payload); err != nil {
			return err
		}
	}
	return nil
}

func (w Web[T]) Before(ctx context.Context, value T) error {
	return w.hook(ctx, value, w.BeforeURL)
}

func (w Web[T]) After(ctx context.Context, value T) error {
	return w.hook(ctx, value, w.AfterURL)
}
