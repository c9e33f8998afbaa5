package models

import "time"

// User is the identity record of a server member. ExternalID is the opaque
// id handed over by the chat platform.
type User struct {
	ID          int       `json:"id"`
	ExternalID  string    `json:"discord_id"`
	DisplayName string    `json:"username"`
	CreatedAt   time.Time `json:"created_at"`
}
