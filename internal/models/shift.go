package models

import "time"

// Shift is one work interval. EndTime and DurationMinutes stay nil while the
// shift is open.
type Shift struct {
	ID              int        `json:"id"`
	ExternalID      string     `json:"discord_id"`
	Department      string     `json:"department"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

// IsOpen reports whether the shift has no end timestamp yet.
func (s *Shift) IsOpen() bool {
	return s.EndTime == nil
}

// Minutes returns the stored duration or 0 for an open shift.
func (s *Shift) Minutes() int {
	if s.DurationMinutes == nil {
		return 0
	}
	return *s.DurationMinutes
}

// ActiveShift is an open shift joined with its owner, used by the admin views.
type ActiveShift struct {
	ID          int       `json:"id"`
	ExternalID  string    `json:"discord_id"`
	DisplayName string    `json:"username"`
	Department  string    `json:"department"`
	StartTime   time.Time `json:"start_time"`
}

// DurationMinutes returns the whole minutes elapsed between start and end,
// never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
