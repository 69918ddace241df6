package sim

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Runner executes independent sessions in parallel, one worker per session.
// Each worker owns its own detector set and trade table; no mutable state
// crosses session boundaries, so results are identical to a serial run.
type Runner struct {
	cfg Config
	log zerolog.Logger

	onEvent func(ticker string, ev Event)
}

// NewRunner creates a runner sharing one validated config across sessions.
func NewRunner(cfg Config, log zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg: cfg,
		log: log.With().Str("component", "Runner").Logger(),
	}, nil
}

// Config returns the validated engine configuration shared by all sessions.
func (r *Runner) Config() Config {
	return r.cfg
}

// SetEventSink registers a callback for every emitted event across sessions.
// The sink may be called from multiple goroutines and must be safe for that.
func (r *Runner) SetEventSink(fn func(ticker string, ev Event)) {
	r.onEvent = fn
}

// SessionError pairs a failed session with its cause.
type SessionError struct {
	Ticker string
	Err    error
}

func (e SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Ticker, e.Err)
}

// RunAll simulates every input. Results keep input order; failed sessions
// leave a nil slot and contribute a SessionError instead.
func (r *Runner) RunAll(inputs []SessionInput) ([]*SessionResult, []SessionError) {
	results := make([]*SessionResult, len(inputs))
	errSlots := make([]*SessionError, len(inputs))

	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			// Each session gets its own simulator so no detector state or
			// trade table is ever shared between workers.
			simulator, err := New(r.cfg, r.log)
			if err != nil {
				errSlots[idx] = &SessionError{Ticker: inputs[idx].Ticker, Err: err}
				return
			}
			if r.onEvent != nil {
				simulator.SetEventSink(r.onEvent)
			}

			res, err := simulator.RunSession(inputs[idx])
			if err != nil {
				errSlots[idx] = &SessionError{Ticker: inputs[idx].Ticker, Err: err}
				return
			}
			results[idx] = res
		}(i)
	}
	wg.Wait()

	var errs []SessionError
	for _, e := range errSlots {
		if e != nil {
			errs = append(errs, *e)
		}
	}
	return results, errs
}
