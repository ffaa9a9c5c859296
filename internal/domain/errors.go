package domain

import "errors"

var (
	// ErrUserAlreadyExists is returned when registering a username that is already taken.
	ErrUserAlreadyExists = errors.New("Denied. User account already exists")
	// ErrInvalidCredentials indicates that no account matches the given username and password.
	ErrInvalidCredentials = errors.New("Denied. User name or password incorrect.")
	// ErrUnauthorized is returned when a command needs a logged in session.
	ErrUnauthorized = errors.New("Denied. Please login first.")
	// ErrInternal is the reply given for a fault that is not the client's doing.
	ErrInternal = errors.New("Denied. Internal server error.")
)

// ValidationError reports a violated credential or message bound. Reason is
// the denial shown to the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UnknownCommandError reports a message whose first token is not a command.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "Invalid command."
}

// Denial returns the client facing text for err, or false when err is not one
// the client should be told about.
func Denial(err error) (string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	var uerr *UnknownCommandError
	if errors.As(err, &uerr) {
		return uerr.Error(), true
	}
	for _, sentinel := range []error{ErrUserAlreadyExists, ErrInvalidCredentials, ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}
