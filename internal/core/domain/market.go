package domain

import "time"

// MarketSnapshot is the single current set of formula inputs.
type MarketSnapshot struct {
	Morning   string    `json:"morning"`
	Evening   string    `json:"evening"`
	Set       string    `json:"set"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryDateLayout is the calendar-day key format for history records.
const HistoryDateLayout = "2006-01-02"

// HistoryRecord holds one day's results. Fields fill in over the day and
// are never overwritten once present.
type HistoryRecord struct {
	Date    string  `json:"date"`
	Morning *string `json:"morning,omitempty"`
	Evening *string `json:"evening,omitempty"`
}

// Merge applies keep-if-present semantics: fields already set on r win.
func (r HistoryRecord) Merge(morning, evening *string) HistoryRecord {
	out := r
	if out.Morning == nil && morning != nil {
		m := *morning
		out.Morning = &m
	}
	if out.Evening == nil && evening != nil {
		e := *evening
		out.Evening = &e
	}
	return out
}

// IsComplete returns true when both results have been recorded.
func (r HistoryRecord) IsComplete() bool {
	return r.Morning != nil && r.Evening != nil
}
