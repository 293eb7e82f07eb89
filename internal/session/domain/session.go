package domain

import (
	"errors"
	"time"
)

// PayloadVersion is the current schema version for session payload
// snapshots. Bump when the shape changes; readers reject unknown versions
// instead of guessing.
const PayloadVersion = 1

var ErrInvalidPayload = errors.New("invalid session payload")

// SessionPayload is the snapshot of identity claims taken at
// session-creation time: it is trusted until the session is recreated and is
// NOT re-read from the user store on every request.
type SessionPayload struct {
	Version int      `json:"v"`
	UserID  string   `json:"userId"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// Validate rejects payloads with a missing subject or an unknown schema
// version so drift between login-time and refresh-time shapes is caught
// loudly rather than at some later JSON parse.
func (p SessionPayload) Validate() error {
	if p.Version != PayloadVersion || p.UserID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// DeviceMeta is optional per-device metadata. Absence never blocks auth.
type DeviceMeta struct {
	DeviceID  string `json:"deviceId,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Merge returns a copy of m with the non-empty fields of override applied
// on top. Used on rotation: caller-supplied metadata wins over the stored
// snapshot, stored values survive where the caller sent nothing.
func (m DeviceMeta) Merge(override DeviceMeta) DeviceMeta {
	out := m
	if override.DeviceID != "" {
		out.DeviceID = override.DeviceID
	}
	if override.UserAgent != "" {
		out.UserAgent = override.UserAgent
	}
	if override.IP != "" {
		out.IP = override.IP
	}
	return out
}

// SessionRecord is one authenticated device. The access entry (keyed by
// session id) and the refresh entry (keyed by refresh-token fingerprint) are
// two views of this same logical record and are created and destroyed
// together. Security fields are never partially updated; rotation replaces
// the record wholesale.
type SessionRecord struct {
	SessionID string         `json:"sessionId"`
	Payload   SessionPayload `json:"payload"`

	// RefreshTokenHash is the memory-hard (argon2id) verifier of the raw
	// refresh token, checked on every refresh.
	RefreshTokenHash string `json:"refreshTokenHash"`

	// RefreshTokenFP is the SHA-256 fingerprint of the refresh token. It is
	// the refresh entry's store key, so the raw token value never appears in
	// the store, and it lets revocation find the paired refresh entry.
	RefreshTokenFP string `json:"refreshTokenFp"`

	Meta       DeviceMeta `json:"meta"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSeenAt time.Time  `json:"lastSeenAt"`
}

// SessionInfo is the device-list view of a session, safe to show to the
// session's owner.
type SessionInfo struct {
	SessionID  string     `json:"sessionId"`
	Meta       DeviceMeta `json:"meta"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSeenAt time.Time  `json:"lastSeenAt"`
	Current    bool       `json:"current"`
}
