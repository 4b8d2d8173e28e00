// Package smtp sends outbound email through the relay configured in the
// system config. The relay password is decrypted per send and never
// cached or logged.
package smtp

import "time"

// dialTimeout bounds the TCP/TLS connect to the relay.
const dialTimeout = 10 * time.Second

// TestEmailRequest is the body of POST /api/system-config/test-email.
type TestEmailRequest struct {
	To string `json:"to"`
}
