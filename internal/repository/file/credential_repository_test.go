package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*CredentialRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.txt")
	repo := NewCredentialRepository(path).(*CredentialRepository)
	require.NoError(t, repo.Init(context.Background()))
	return repo, path
}

func TestInit_CreatesEmptyFileAndKeepsExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "users.txt")
	repo := NewCredentialRepository(path)

	require.NoError(t, repo.Init(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, repo.Append(ctx, "alice", "pass"))
	require.NoError(t, repo.Init(ctx))

	ok, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppend_WritesReferenceFormat(t *testing.T) {
	ctx := context.Background()
	repo, path := newRepo(t)

	require.NoError(t, repo.Append(ctx, "alice", "pass"))
	require.NoError(t, repo.Append(ctx, "bob", "secret1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "(alice, pass)\n(bob, secret1)\n", string(data))
}

func TestExistsAndVerify(t *testing.T) {
	ctx := context.Background()
	repo, path := newRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("(alice, pass)\n\ngarbage line here\n(bob, secret1)\n"), 0o600))

	tests := []struct {
		name     string
		username string
		password string
		exists   bool
		verified bool
	}{
		{name: "alice", username: "alice", password: "pass", exists: true, verified: true},
		{name: "bob wrong password", username: "bob", password: "secret", exists: true},
		{name: "prefix is not a match", username: "ali", password: "pass"},
		{name: "unknown", username: "carol", password: "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 2 {
				exists, err := repo.Exists(ctx, tt.username)
				require.NoError(t, err)
				assert.Equal(t, tt.exists, exists)

				verified, err := repo.Verify(ctx, tt.username, tt.password)
				require.NoError(t, err)
				assert.Equal(t, tt.verified, verified)
			}
		})
	}
}

func TestExists_SeesExternalEdits(t *testing.T) {
	ctx := context.Background()
	repo, path := newRepo(t)

	ok, err := repo.Exists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("(carol, hunter2)\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err = repo.Exists(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	ok, err := repo.InsertIfAbsent(ctx, "alice", "pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.InsertIfAbsent(ctx, "alice", "pass2")
	require.NoError(t, err)
	assert.False(t, ok)

	verified, err := repo.Verify(ctx, "alice", "pass2")
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestInsertIfAbsent_ConcurrentSameUsername(t *testing.T) {
	ctx := context.Background()
	repo, path := newRepo(t)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, "alice", "pass"+string(rune('a'+i)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "(alice, "))
}

func TestCancelledContext(t *testing.T) {
	repo, _ := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Exists(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.Append(ctx, "alice", "pass"), context.Canceled)
}
