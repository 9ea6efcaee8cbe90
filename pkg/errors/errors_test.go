package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/opst/mlengine/pkg/errors"
)

type MyErr struct{}

func (MyErr) Error() string {
	return "error type for test"
}

func createError(message string) error {
	return xe.New(message)
}

func TestNewError(t *testing.T) {
	t.Run("it knows location where it is created", func(t *testing.T) {
		testee := createError("test error")
		errMessage := testee.Error()

		_, thisFile, _, _ := runtime.Caller(0)

		if !strings.Contains(errMessage, "createError") {
			t.Errorf("it does not know function name: %s", errMessage)
		}
		if !strings.Contains(errMessage, thisFile) {
			t.Errorf("it does not know file (%s): %s", thisFile, errMessage)
		}
	})

	t.Run("it supports errors protocol", func(t *testing.T) {
		rootError := MyErr{}
		err := xe.Wrap(fmt.Errorf("%w", fmt.Errorf("%w", rootError)))

		if !errors.Is(err, rootError) {
			t.Error("it does not support unwrapping.")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("wrapping nil gives nil", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("Wrap(nil) = %v, want nil", err)
		}
		if err := xe.WrapWithNote("note", nil); err != nil {
			t.Errorf("WrapWithNote(nil) = %v, want nil", err)
		}
	})

	t.Run("note is shown in the message", func(t *testing.T) {
		err := xe.WrapWithNote("loading dataset", MyErr{})
		if !strings.Contains(err.Error(), "(loading dataset)") {
			t.Errorf("note is missing: %s", err)
		}
		if !errors.Is(err, MyErr{}) {
			t.Errorf("it does not unwrap: %s", err)
		}
	})

	t.Run("Errorf keeps wrapped errors", func(t *testing.T) {
		err := xe.Errorf("while reading %s: %w", "a.csv", MyErr{})
		if !errors.Is(err, MyErr{}) {
			t.Errorf("it does not unwrap: %s", err)
		}
		if !strings.Contains(err.Error(), "a.csv") {
			t.Errorf("message is lost: %s", err)
		}
	})
}
