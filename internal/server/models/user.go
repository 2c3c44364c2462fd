// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
