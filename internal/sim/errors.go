package sim

import (
	"errors"
	"fmt"
)

// ErrNoBars is returned when a session has no bar data at all. The session
// yields an explicit "no result" rather than a partially populated one.
var ErrNoBars = errors.New("session has no bars")

// InvariantError indicates a logic defect in the state machine, e.g. a
// second trade opening on a zone that already has one, or a closed trade
// being closed again. It halts processing of the session.
type InvariantError struct {
	TradeID string
	Bar     int
	Detail  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation at bar %d (trade %s): %s", e.Bar, e.TradeID, e.Detail)
}
