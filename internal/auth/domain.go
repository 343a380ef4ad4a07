package auth

import "time"

// User represents a registered account.
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	ResetToken       *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
}

// PublicUser is the wire representation of a user. The password hash and
// reset-token fields are never part of it.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips credentials from the record.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// Session pairs an issued token with its owning user.
type Session struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}
