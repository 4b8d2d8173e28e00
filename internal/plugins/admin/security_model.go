package admin

import "time"

// Security event types follow the "resource.verb" pattern.
const (
	EventAuthVerified    = "admin.verified"
	EventAuthFailed      = "admin.auth_failed"
	EventUserUpdated     = "admin.user_updated"
	EventUserDeleted     = "admin.user_deleted"
	EventCreditsAdjusted = "admin.credits_adjusted"
	EventSessionsRevoked = "admin.sessions_revoked"
)

// securityEventsKey holds the site-wide admin event log, newest first.
const securityEventsKey = "admin_security_events"

// maxSecurityEvents caps the stored log.
const maxSecurityEvents = 500

// securityPerPage is the number of events returned per page.
const securityPerPage = 50

// SecurityEvent is one admin-plane event. Unlike the per-user audit log,
// these track who used the admin secret and from where.
type SecurityEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	UserID    string         `json:"userId,omitempty"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// SecurityStats summarizes the last 24 hours of admin activity.
type SecurityStats struct {
	TotalEvents       int `json:"totalEvents"`
	FailedAuth24h     int `json:"failedAuth24h"`
	SuccessfulAuth24h int `json:"successfulAuth24h"`
	UniqueIPs24h      int `json:"uniqueIps24h"`
}
