package entity

import (
	"time"
)

// UserType distinguishes sellers from purchasers on the marketplace.
type UserType string

const (
	UserTypeVendor UserType = "VENDOR"
	UserTypeBuyer  UserType = "BUYER"
)

// Valid reports whether t is one of the two marketplace roles.
func (t UserType) Valid() bool {
	return t == UserTypeVendor || t == UserTypeBuyer
}

// User is the aggregate root for the account domain.
// PasswordHash holds a bcrypt hash and must never reach a client.
//
// UserType is immutable after creation; PreferredLanguage may change any
// number of times.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	UserType          UserType
	PreferredLanguage string
	PhoneNumber       *string
	IsVerified        bool
	AvatarURL         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
