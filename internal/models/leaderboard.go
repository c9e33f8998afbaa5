package models

// GlobalScope labels a leaderboard computed over every department.
const GlobalScope = "Global"

// DurationTotal is one aggregated row as produced by the store.
type DurationTotal struct {
	ExternalID   string
	DisplayName  string
	TotalMinutes int
}

// LeaderboardEntry is a ranked, derived {user, total} pair.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	ExternalID   string `json:"discordId"`
	DisplayName  string `json:"username"`
	TotalMinutes int    `json:"totalDuration"`
}

// BotStatus is the liveness pair exposed to the reporting surface. Uptime is
// in milliseconds.
type BotStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
	OnDuty *int64 `json:"onDuty,omitempty"`
}
