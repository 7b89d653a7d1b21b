package models

import "time"

// User is an authenticated account. Email is set for password accounts,
// Login for accounts resolved from the tailnet.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email,omitempty"`
	Login        string    `json:"login,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
