package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 4
	MaxPasswordLength = 8
)

// reservedChars delimit records in the credential file.
const reservedChars = "(),"

// Credential is one registered account of the chat room.
type Credential struct {
	Username string
	Password string
}

// ValidateCredentials applies the syntactic account rules shared by login and
// registration. The first violated rule is reported.
func ValidateCredentials(username, password string) error {
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return &ValidationError{Reason: "Denied. Username must be between 3 and 32 characters."}
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLength || n > MaxPasswordLength {
		return &ValidationError{Reason: "Denied. Password must be between 4 and 8 characters."}
	}
	if strings.Contains(username, " ") || strings.Contains(password, " ") {
		return &ValidationError{Reason: "Denied. Username or password cannot contain spaces."}
	}
	if strings.ContainsAny(username, reservedChars) || strings.ContainsAny(password, reservedChars) {
		return &ValidationError{Reason: "Denied. Username or password cannot contain '(', ')' or ','."}
	}
	return nil
}

// Validate checks c against ValidateCredentials.
func (c Credential) Validate() error {
	return ValidateCredentials(c.Username, c.Password)
}
