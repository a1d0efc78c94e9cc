// Package domain provides the operator account model.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an operator account with API access.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
