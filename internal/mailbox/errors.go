package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates that a mail server rejected the credentials.
type AuthError struct {
	// Protocol is "imap" or "smtp".
	Protocol string
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf(
		"%s authentication failed for %s: %v", e.Protocol, e.Username, e.Err,
	)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
