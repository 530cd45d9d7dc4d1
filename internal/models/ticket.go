package models

import "time"

// Cookie is an upstream cookie captured from the portal session.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionTicket ties an issued CAPTCHA to the upstream cookie state and CSRF
// token needed to complete the login. Tickets are single-use.
type SessionTicket struct {
	Token     string    `json:"token"`
	CSRF      string    `json:"csrf"`
	Cookies   []Cookie  `json:"cookies"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the ticket is older than ttl at the given instant.
func (t *SessionTicket) Expired(now time.Time, ttl time.Duration) bool {
	if t == nil {
		return true
	}
	return now.Sub(t.CreatedAt) > ttl
}
