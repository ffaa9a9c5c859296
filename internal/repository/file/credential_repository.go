// Package file stores chat room accounts in an append-only text file, one
// "(username, password)" record per line.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chatroom/internal/domain"
	"chatroom/internal/repository"
)

type CredentialRepository struct {
	path string
	// mu serializes writers; readers scan the file without it.
	mu sync.Mutex
}

func NewCredentialRepository(path string) repository.CredentialRepository {
	return &CredentialRepository{path: path}
}

// Init creates an empty credential file if none exists yet.
func (r *CredentialRepository) Init(ctx context.Context) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create credential dir: %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create credential file: %w", err)
	}
	return f.Close()
}

func (r *CredentialRepository) Exists(ctx context.Context, username string) (bool, error) {
	found := false
	err := r.scan(ctx, func(c domain.Credential) bool {
		found = c.Username == username
		return !found
	})
	return found, err
}

func (r *CredentialRepository) Verify(ctx context.Context, username, password string) (bool, error) {
	found := false
	err := r.scan(ctx, func(c domain.Credential) bool {
		found = c.Username == username && c.Password == password
		return !found
	})
	return found, err
}

func (r *CredentialRepository) Append(ctx context.Context, username, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(ctx, username, password)
}

func (r *CredentialRepository) InsertIfAbsent(ctx context.Context, username, password string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.Exists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.write(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (r *CredentialRepository) write(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "(%s, %s)\n", username, password); err != nil {
		f.Close()
		return fmt.Errorf("append credential: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	return nil
}

// scan calls fn for every record in file order until fn returns false.
func (r *CredentialRepository) scan(ctx context.Context, fn func(domain.Credential) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		cred, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if !fn(cred) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read credential file: %w", err)
	}
	return nil
}

func parseLine(line string) (domain.Credential, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return domain.Credential{}, false
	}
	return domain.Credential{
		Username: strings.Trim(fields[0], "(),"),
		Password: strings.Trim(fields[1], "(),"),
	}, true
}
