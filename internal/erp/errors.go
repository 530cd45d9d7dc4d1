package erp

import (
	"errors"
	"fmt"
)

var (
	ErrCSRFTokenMissing = errors.New("csrf token not found in login page")
	ErrCaptchaMissing   = errors.New("captcha image not found in login response")
	ErrLoginRejected    = errors.New("portal rejected the login")
	ErrTimetableMissing = errors.New("timetable table not found")
)

// UpstreamError reports a transport failure or an error status from the portal.
type UpstreamError struct {
	Step   string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("portal %s: unexpected status %d", e.Step, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
