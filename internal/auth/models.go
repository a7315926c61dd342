// Package auth resolves opaque credentials into identities. Admin tokens are
// IP-bound sessions held in a store; anything else is delegated to the
// external end-user auth service. Exactly one of {admin, user} ends up set.
package auth

import "time"

// AccessLevel is an admin's restriction tier. Lower is more privileged.
type AccessLevel int

const (
	// LevelFull admins see everything, including the monitored list and the
	// admin roster.
	LevelFull AccessLevel = 0
	// LevelRestricted admins never see or set the is_monitored flag.
	LevelRestricted AccessLevel = 1
	// LevelMostRestricted admins may only list pending cases.
	LevelMostRestricted AccessLevel = 2
)

// AdminAccount is a configured admin: who may log in, and at which level.
type AdminAccount struct {
	Email        string
	PasswordHash string
	Level        AccessLevel
	IsActive     bool
}

// Session is one logged-in admin token. The IP is pinned at login; a lookup
// from any other origin fails.
type Session struct {
	Token     string      `json:"token"`
	Email     string      `json:"email"`
	Level     AccessLevel `json:"level"`
	IP        string      `json:"ip"`
	Device    string      `json:"device"`
	CreatedAt time.Time   `json:"created_at"`
}

// User is the profile the external auth service returns for a verified
// end-user token.
type User struct {
	ID       int64
	Username string
	Email    string
}

// Identity is a resolved caller. Admin is nil for end users; User is nil for
// admins.
type Identity struct {
	Admin *Session
	User  *User
}

func (id *Identity) IsAdmin() bool { return id != nil && id.Admin != nil }

// UserID returns the resolved end-user uid, or zero for admins.
func (id *Identity) UserID() int64 {
	if id == nil || id.User == nil {
		return 0
	}
	return id.User.ID
}

// AdminEmail returns the acting admin's email, or the empty string.
func (id *Identity) AdminEmail() string {
	if !id.IsAdmin() {
		return ""
	}
	return id.Admin.Email
}

// Level returns the admin access level; non-admins report the most
// restricted tier.
func (id *Identity) Level() AccessLevel {
	if !id.IsAdmin() {
		return LevelMostRestricted
	}
	return id.Admin.Level
}

// Credential is the opaque pair every operation carries.
type Credential struct {
	Token string `json:"authToken"`
	IP    string `json:"ip"`
}
