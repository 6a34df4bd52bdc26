package models

import "time"

// UserType classifies an account.
type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypePartner  UserType = "partner"
)

// Valid reports whether the type is one an account may register with.
func (t UserType) Valid() bool {
	return t == UserTypeCustomer || t == UserTypePartner
}

// User represents an account stored in the users table. The phone number is
// the login identifier.
type User struct {
	ID                string     `db:"id" json:"id"`
	PhoneNumber       string     `db:"phone_number" json:"phone_number"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          *string    `db:"full_name" json:"full_name,omitempty"`
	Email             *string    `db:"email" json:"email,omitempty"`
	Gender            *string    `db:"gender" json:"gender,omitempty"`
	Birthday          *time.Time `db:"birthday" json:"birthday,omitempty"`
	Address           *string    `db:"address" json:"address,omitempty"`
	AvatarPath        *string    `db:"avatar_path" json:"-"`
	UserType          UserType   `db:"user_type" json:"user_type"`
	HasPartnerProfile bool       `db:"has_partner_profile" json:"has_partner_profile"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// UserSummary is the public projection of a user returned by auth and
// profile endpoints.
type UserSummary struct {
	ID                string                 `json:"id"`
	FullName          *string                `json:"full_name"`
	Gender            *string                `json:"gender"`
	Email             *string                `json:"email"`
	Birthday          *string                `json:"birthday"`
	Address           *string                `json:"address"`
	Phone             string                 `json:"phone"`
	AvatarURL         *string                `json:"avatar_url"`
	UserType          UserType               `json:"user_type"`
	HasPartnerProfile bool                   `json:"has_partner_profile"`
	PartnerProfile    *PartnerProfileSummary `json:"partner_profile"`
}

// BirthdayLayout is the wire format for birthdays (yyyy/MM/dd).
const BirthdayLayout = "2006/01/02"
