package domain

import "time"

// WindowPolicy selects how usage periods are keyed.
//
// Calendar-day buckets reset at UTC midnight; the rolling window counts
// the trailing sixty seconds. Both policies share the same store.
type WindowPolicy string

const (
	WindowCalendarDay   WindowPolicy = "calendar_day"
	WindowRollingMinute WindowPolicy = "rolling_minute"
)

func (p WindowPolicy) IsValid() bool {
	switch p {
	case WindowCalendarDay, WindowRollingMinute:
		return true
	}
	return false
}

// UsageRecord counts messages delivered to one recipient in one period.
// At most one record exists per (recipient, period key); the count only
// grows within a period and resets solely by period rollover.
type UsageRecord struct {
	RecipientID string    `json:"recipient_id"`
	PeriodKey   string    `json:"period_key"`
	Count       int       `json:"count"`
	Known       bool      `json:"known"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsageDecision is the ledger's answer for one recipient.
type UsageDecision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}
