package domain

import "time"

// User is the domain model for registered accounts.
//
// Deleting an account only clears IsActive; the row and its email stay reserved.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
