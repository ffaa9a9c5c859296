package repository

import "context"

// CredentialRepository defines persistence operations for chat room accounts.
// Implementations read the backing store on every call so lookups always see
// the latest registrations.
type CredentialRepository interface {
	Init(ctx context.Context) error
	Exists(ctx context.Context, username string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
	// Append stores a record without checking for an existing username.
	Append(ctx context.Context, username, password string) error
	// InsertIfAbsent atomically stores a record unless the username is taken.
	// It reports whether the record was stored.
	InsertIfAbsent(ctx context.Context, username, password string) (bool, error)
}
