// Package domain holds the execution context's trade lifecycle state
// machine.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// State is one stage of the trade lifecycle.
type State string

const (
	StateDiscovered          State = "discovered"
	StateValidated           State = "validated"
	StateSimulated           State = "simulated"
	StateSigned              State = "signed"
	StateSubmitted           State = "submitted"
	StateConfirmed           State = "confirmed"
	StateSettled             State = "settled"
	StateRejected            State = "rejected"
	StateSimulationMismatch  State = "simulation_mismatch"
	StateSubmissionFailed    State = "submission_failed"
	StateExpired             State = "expired"
	StateConfirmationTimeout State = "confirmation_timeout"
)

// legalTransitions is the complete lifecycle graph. Anything not
// listed here is a programming error, not a runtime condition.
var legalTransitions = map[State][]State{
	StateDiscovered: {StateValidated, StateRejected},
	StateValidated:  {StateSimulated, StateSimulationMismatch},
	StateSimulated:  {StateSigned, StateExpired, StateSubmissionFailed},
	StateSigned:     {StateSubmitted, StateExpired, StateSubmissionFailed},
	StateSubmitted:  {StateConfirmed, StateConfirmationTimeout, StateSubmissionFailed, StateExpired},
	StateConfirmed:  {StateSettled},
}

// terminal states close the record for good.
var terminal = map[State]bool{
	StateSettled:             true,
	StateRejected:            true,
	StateSimulationMismatch:  true,
	StateSubmissionFailed:    true,
	StateExpired:             true,
	StateConfirmationTimeout: true,
}

// IsTerminal reports whether the state closes a record.
func (s State) IsTerminal() bool { return terminal[s] }

// Record tracks one opportunity through execution. Terminal records
// are retained for audit and never reused.
type Record struct {
	ID            uuid.UUID
	OpportunityID uuid.UUID
	State         State

	Signature         string
	SimulatedOutput   *big.Int
	ActualOutput      *big.Int
	NetProfitRealized *big.Int
	FailureReason     string
	FailureDetail     string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StateTimes map[State]time.Time
}

// NewRecord opens a record in the Discovered state.
func NewRecord(opportunityID uuid.UUID, now time.Time) *Record {
	return &Record{
		ID:            uuid.New(),
		OpportunityID: opportunityID,
		State:         StateDiscovered,
		CreatedAt:     now,
		UpdatedAt:     now,
		StateTimes:    map[State]time.Time{StateDiscovered: now},
	}
}

// Transition moves the record to the next state, rejecting moves the
// lifecycle graph does not allow and any move out of a terminal state.
func (r *Record) Transition(to State, now time.Time) error {
	if r.State.IsTerminal() {
		return fmt.Errorf("record %s: terminal state %s cannot transition to %s", r.ID, r.State, to)
	}
	for _, allowed := range legalTransitions[r.State] {
		if allowed == to {
			r.State = to
			r.UpdatedAt = now
			r.StateTimes[to] = now
			return nil
		}
	}
	return fmt.Errorf("record %s: illegal transition %s -> %s", r.ID, r.State, to)
}

// Fail transitions into a terminal failure state and records why.
func (r *Record) Fail(to State, now time.Time, reason, detail string) error {
	if err := r.Transition(to, now); err != nil {
		return err
	}
	r.FailureReason = reason
	r.FailureDetail = detail
	return nil
}

// Closed reports whether the record reached a terminal state.
func (r *Record) Closed() bool { return r.State.IsTerminal() }
