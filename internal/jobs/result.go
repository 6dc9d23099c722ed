package jobs

// Outcome classifies what a processor did with a job.
type Outcome int

const (
	// OutcomeApplied means side effects were performed.
	OutcomeApplied Outcome = iota + 1
	// OutcomeNoOp means the payload lacked a field its branch needs; the job
	// completes without side effects and is not retried.
	OutcomeNoOp
	// OutcomeTransient means a collaborator failed or timed out; the job is retried.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Result is returned by every processor.
type Result struct {
	Outcome Outcome
	// Reason explains a no-op.
	Reason string
	// Err is the cause of a transient failure.
	Err error
	// FollowUps are jobs to enqueue once the processor has returned.
	FollowUps []Payload
}

// Applied reports performed side effects and the follow-up jobs they produce.
func Applied(followUps ...Payload) Result {
	return Result{Outcome: OutcomeApplied, FollowUps: followUps}
}

// Skipped reports a lenient no-op.
func Skipped(reason string) Result {
	return Result{Outcome: OutcomeNoOp, Reason: reason}
}

// Transient reports a retryable failure.
func Transient(err error) Result {
	return Result{Outcome: OutcomeTransient, Err: err}
}
