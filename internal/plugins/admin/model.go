// Package admin is the shared-secret admin plane: the gate protecting
// every content-management and configuration route, user management with
// credit grants, and a site-wide log of admin security events.
//
// The admin plane is independent of user sessions. A user's bearer token
// never grants admin access and the admin secret never acts as a user.
package admin

// Header names accepted by RequireAdmin.
const (
	HeaderAdminPassword = "X-Admin-Password"
	HeaderAdminToken    = "X-Admin-Token"
)

// Bounds for admin input.
const (
	maxUsernameLen  = 64
	maxEmailLen     = 254
	maxCreditChange = 1_000_000
)

// UpdateUserRequest edits a user. Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// AdjustCreditsRequest grants (or, when negative, removes) credits.
type AdjustCreditsRequest struct {
	Amount *int `json:"amount"`
}
