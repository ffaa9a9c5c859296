package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom/internal/domain"
	"chatroom/internal/repository"
)

func newRepo(t *testing.T) repository.CredentialRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "chatroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewCredentialRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestCredentialRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	exists, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Append(ctx, "alice", "pass"))

	exists, err = repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	ok, err := repo.Verify(ctx, "alice", "pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Verify(ctx, "alice", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialRepository_InitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Append(ctx, "alice", "pass"))
	require.NoError(t, repo.Init(ctx))

	exists, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCredentialRepository_AppendDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Append(ctx, "alice", "pass"))
	err := repo.Append(ctx, "alice", "pass2")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "chatroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, NewCredentialRepository(db).Init(ctx))

	insert := `INSERT INTO credentials (username, password, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	_, err = db.ExecContext(ctx, insert, "alice", "pass")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "alice", "pass2")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	_, err = db.ExecContext(ctx, `INSERT INTO credentials (username, password, created_at) VALUES (?, NULL, CURRENT_TIMESTAMP)`, "bobby")
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "NOT NULL is not a duplicate")

	assert.False(t, isUniqueViolation(errors.New("unique in name only")))
}

func TestCredentialRepository_InsertIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, "alice", "pass")
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
}
