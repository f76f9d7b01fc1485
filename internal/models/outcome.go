package models

// Outcome is the terminal state of one posting cycle.
type Outcome int

const (
	OutcomeSent Outcome = iota
	// OutcomeSkippedDisabled: posting is switched off or an earlier send failed.
	OutcomeSkippedDisabled
	// OutcomeSkippedNoChannel: the chat session has not joined a channel yet.
	OutcomeSkippedNoChannel
	// OutcomeSkippedNoSession: the publishing login failed this cycle.
	OutcomeSkippedNoSession
	// OutcomeSkippedNoCandidate: nothing acceptable was generated or approved.
	OutcomeSkippedNoCandidate
	// OutcomeFailed: the send itself failed and posting is now disabled.
	OutcomeFailed
	// OutcomeCanceled: the context ended while waiting.
	OutcomeCanceled
)

var outcomeNames = map[Outcome]string{
	OutcomeSent:               "sent",
	OutcomeSkippedDisabled:    "skipped_disabled",
	OutcomeSkippedNoChannel:   "skipped_no_channel",
	OutcomeSkippedNoSession:   "skipped_no_session",
	OutcomeSkippedNoCandidate: "skipped_no_candidate",
	OutcomeFailed:             "failed",
	OutcomeCanceled:           "canceled",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}
