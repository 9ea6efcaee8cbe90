package postgres

import (
	"fmt"

	domerr "github.com/opst/mlengine/pkg/domain/errors"
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s ", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return domerr.ErrMissing
}

// requested data is found too much.
type TooMuch struct {
	Table    string
	Identity string
	Expected int
}

var _ error = TooMuch{}

func (t TooMuch) Error() string {
	return fmt.Sprintf(
		"%s is found in %s more than %d times",
		t.Identity, t.Table, t.Expected,
	)
}

func (t TooMuch) Unwrap() error {
	return domerr.ErrTooMuch
}

// the change violates a unique constraint.
type Conflict struct {
	Table    string
	Identity string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s conflicts in %s", c.Identity, c.Table)
}

func (c Conflict) Unwrap() error {
	return domerr.ErrConflict
}

// the entity cannot go to the requested status.
type InvalidState struct {
	Table    string
	Identity string
	Status   string
}

var _ error = InvalidState{}

func (i InvalidState) Error() string {
	return fmt.Sprintf("%s in %s is %s", i.Identity, i.Table, i.Status)
}

func (i InvalidState) Unwrap() error {
	return domerr.ErrInvalidState
}
