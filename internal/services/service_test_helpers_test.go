package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/vibefs/internal/database/testutil"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func newAuthorizationService(t *testing.T, clock *testClock, opts ...AuthorizationOption) (*AuthorizationService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	opts = append([]AuthorizationOption{WithAuthorizationClock(clock.Now)}, opts...)
	svc, err := NewAuthorizationService(db, opts...)
	require.NoError(t, err)
	return svc, db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func makeRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

// sequenceTokens hands out tokens in order, repeating the last one when exhausted.
func sequenceTokens(tokens ...string) func(int) (string, error) {
	var mu sync.Mutex
	next := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		token := tokens[next]
		if next < len(tokens)-1 {
			next++
		}
		return token, nil
	}
}
