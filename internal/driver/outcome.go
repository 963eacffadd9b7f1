package driver

import "github.com/sonnylabs/sonny/internal/engine"

// State names the driver's position in the protocol.
type State string

const (
	StateInit                State = "INIT"
	StateAskingRequirements  State = "ASKING_REQUIREMENTS"
	StateRequirementsReady   State = "REQUIREMENTS_READY"
	StateVersionsReady       State = "VERSIONS_READY"
	StateAskingPlan          State = "ASKING_PLAN"
	StatePlanReady           State = "PLAN_READY"
	StateExecuting           State = "EXECUTING"
	StateFailedOnce          State = "FAILED_ONCE"
	StateAskingCorrection    State = "ASKING_CORRECTION"
	StateSuccess             State = "SUCCESS"
	StateAborted             State = "ABORTED"
)

// AbortReason classifies a terminal abort.
type AbortReason string

const (
	ReasonParseFailure         AbortReason = "parse_failure"
	ReasonOracleFailure        AbortReason = "oracle_failure"
	ReasonRetryBudgetExhausted AbortReason = "retry_budget_exhausted"
	ReasonCancelled            AbortReason = "cancelled"
)

// Outcome is the single terminal result of a run. Record accumulates the
// step results of every execution attempt, in order.
type Outcome struct {
	State       State
	Record      *engine.Record
	Reason      AbortReason
	LastFailure *engine.FailureContext
}

// Succeeded reports whether the run reached SUCCESS.
func (o Outcome) Succeeded() bool {
	return o.State == StateSuccess
}
