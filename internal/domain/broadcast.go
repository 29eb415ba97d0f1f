package domain

// Outcome classifies a single recipient's result inside a broadcast.
//
// A recipient denied by the usage ledger is always "skipped", never
// "failed": failed is reserved for dispatch attempts that errored.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// BroadcastRequest is the inbound payload for the broadcast endpoint.
type BroadcastRequest struct {
	Recipients []string   `json:"recipients"`
	Message    string     `json:"message"`
	Image      string     `json:"image,omitempty"`
	Platform   Channel    `json:"platform,omitempty"`
	Buttons    [][]Button `json:"buttons,omitempty"`
}

// Validate checks the request against the configured recipient cap.
// An over-limit list is rejected whole; it is never truncated.
func (r *BroadcastRequest) Validate(maxRecipients int) error {
	if len(r.Recipients) == 0 {
		return ErrNoRecipients
	}
	if len(r.Recipients) > maxRecipients {
		return ErrTooManyRecipients
	}
	if r.Message == "" && r.Image == "" {
		return ErrEmptyMessage
	}
	if r.Platform != "" && !r.Platform.IsValid() {
		return ErrInvalidChannel
	}
	return nil
}

// BroadcastDetail is the per-recipient entry in a broadcast summary.
type BroadcastDetail struct {
	Recipient string  `json:"recipient"`
	Outcome   Outcome `json:"outcome"`
	MessageID string  `json:"message_id,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BroadcastSummary aggregates all per-recipient outcomes.
// Counts are deterministic; Details order is not guaranteed to match
// the input order when sends run concurrently.
type BroadcastSummary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Details    []BroadcastDetail `json:"details"`
}
