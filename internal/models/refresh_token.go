package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the stored record of an issued refresh token.
// Only the SHA-256 of the token is kept.
type RefreshToken struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	TokenHash  string     `db:"token_hash"`
	DeviceType NullString `db:"device_type"`
	IPAddress  NullString `db:"ip_address"`
	UserAgent  NullString `db:"user_agent"`
	CreatedAt  time.Time  `db:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	Revoked    bool       `db:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at"`
}

// HashToken returns the hex SHA-256 of a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Usable reports whether the token is neither revoked nor expired at now
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// ClientInfo describes where an auth request came from
type ClientInfo struct {
	IP         string
	UserAgent  string
	DeviceType string
}

// LogoutRequest revokes one refresh token, or every token of the caller
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	AllDevices   bool   `json:"all_devices"`
}

// LogoutResponse reports how many sessions were ended
type LogoutResponse struct {
	Revoked int64 `json:"revoked"`
}
