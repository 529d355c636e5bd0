package attendance

// Outcome classifies a scan for the operator. Duplicate is an expected,
// frequent condition (same learner scanning twice) and is not an error;
// only storage or provider failures map to OutcomeError.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeError     Outcome = "error"
)

// classifyTimeIn maps a raw time-in result to the caller-facing outcome.
func classifyTimeIn(res TimeInResult, err error) Outcome {
	if err != nil {
		return OutcomeError
	}
	if res.Duplicate {
		return OutcomeDuplicate
	}
	return OutcomeSuccess
}

// classifyTimeOut maps a raw time-out result to the caller-facing outcome.
// A time-out with no open session is a refused transition, not a fault,
// but the operator still sees it as an error banner.
func classifyTimeOut(res TimeOutResult, err error) Outcome {
	if err != nil || res.NoActiveSession {
		return OutcomeError
	}
	return OutcomeSuccess
}
