package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/vibefs/internal/database/testutil"
	"github.com/charlesng35/vibefs/internal/gitinfo"
	"github.com/charlesng35/vibefs/internal/models"
	"github.com/charlesng35/vibefs/internal/render"
	"github.com/charlesng35/vibefs/internal/services"
	"github.com/charlesng35/vibefs/pkg/response"
)

type handlerClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *handlerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *handlerClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type stubGitReader struct {
	commit *gitinfo.Commit
	err    error
	calls  int
}

func (s *stubGitReader) Commit(_ context.Context, _, _ string) (*gitinfo.Commit, error) {
	s.calls++
	return s.commit, s.err
}

type resourceFixture struct {
	router *gin.Engine
	authz  *services.AuthorizationService
	clock  *handlerClock
	git    *stubGitReader
}

func newResourceFixture(t *testing.T) *resourceFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &handlerClock{current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	authz, err := services.NewAuthorizationService(db, services.WithAuthorizationClock(clock.Now))
	require.NoError(t, err)

	registry, err := render.NewRegistry(render.Options{Now: clock.Now})
	require.NoError(t, err)

	git := &stubGitReader{commit: &gitinfo.Commit{
		Hash:       "0123456789abcdef0123456789abcdef01234567",
		AuthorName: "Ada",
		Subject:    "Add parser",
		Date:       clock.Now().Format(time.RFC3339),
		Files: []gitinfo.FileChange{
			{Path: "parser.go", Added: 3, Deleted: 1, Diff: "+func parse() {}\n"},
		},
	}}

	handler, err := NewResourceHandler(authz, git, registry)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/f/:token/:filename", handler.File)
	r.GET("/git/:token", handler.Commit)

	return &resourceFixture{router: r, authz: authz, clock: clock, git: git}
}

func (f *resourceFixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func makeTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

func TestResourceHandlerServesAuthorizedFile(t *testing.T) {
	f := newResourceFixture(t)
	path := writeTestFile(t, "main.go", "package main\n\nfunc main() {}\n")

	grant, err := f.authz.AuthorizeFile(context.Background(), path, time.Hour)
	require.NoError(t, err)

	rec := f.get("/f/" + grant.Token + "/main.go")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "main.go")
	require.Contains(t, rec.Body.String(), "package")
}

func TestResourceHandlerAppliesLineWindow(t *testing.T) {
	f := newResourceFixture(t)
	path := writeTestFile(t, "build.log", "one\ntwo\nthree\nfour\n")

	grant, err := f.authz.AuthorizeFile(context.Background(), path, time.Hour)
	require.NoError(t, err)

	rec := f.get("/f/" + grant.Token + "/build.log?head=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "one\ntwo\n", rec.Body.String())

	rec = f.get("/f/" + grant.Token + "/build.log?tail=1")
	require.Equal(t, "four\n", rec.Body.String())

	rec = f.get("/f/" + grant.Token + "/build.log?head=1&tail=1")
	require.Equal(t, "one\n", rec.Body.String())

	rec = f.get("/f/" + grant.Token + "/build.log?head=-3")
	require.Equal(t, "one\ntwo\nthree\nfour\n", rec.Body.String())

	rec = f.get("/f/" + grant.Token + "/build.log?head=abc&tail=2")
	require.Equal(t, "three\nfour\n", rec.Body.String())
}

func TestResourceHandlerRejectsUnknownTokenAndWrongName(t *testing.T) {
	f := newResourceFixture(t)
	path := writeTestFile(t, "notes.txt", "hello\n")

	grant, err := f.authz.AuthorizeFile(context.Background(), path, time.Hour)
	require.NoError(t, err)

	rec := f.get("/f/deadbeef/notes.txt")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found", rec.Body.String())

	rec = f.get("/f/" + grant.Token + "/other.txt")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found", rec.Body.String())
}

func TestResourceHandlerExpiredFile(t *testing.T) {
	f := newResourceFixture(t)
	path := writeTestFile(t, "secret.txt", "top secret contents\n")

	grant, err := f.authz.AuthorizeFile(context.Background(), path, time.Minute)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	rec := f.get("/f/" + grant.Token + "/secret.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "secret.txt")
	require.Contains(t, rec.Body.String(), "has expired")
	require.NotContains(t, rec.Body.String(), "top secret contents")
	require.NotContains(t, rec.Body.String(), filepath.Dir(path))

	// Lookups never extend or delete.
	record, status, err := f.authz.LookupFile(context.Background(), grant.Token)
	require.NoError(t, err)
	require.Equal(t, services.StatusExpired, status)
	require.NotNil(t, record)
}

func TestResourceHandlerFileGone(t *testing.T) {
	f := newResourceFixture(t)
	path := writeTestFile(t, "gone.txt", "bye\n")

	grant, err := f.authz.AuthorizeFile(context.Background(), path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	rec := f.get("/f/" + grant.Token + "/gone.txt")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "File no longer exists on disk", rec.Body.String())
	require.Equal(t, "RESOURCE_GONE", rec.Header().Get(response.ErrorCodeHeader))
}

func TestResourceHandlerServesCommit(t *testing.T) {
	f := newResourceFixture(t)
	repo := makeTestRepo(t)

	grant, err := f.authz.AuthorizeGitCommit(context.Background(), repo, "0123456789abcdef", time.Hour)
	require.NoError(t, err)

	rec := f.get("/git/" + grant.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Add parser")
	require.Contains(t, rec.Body.String(), "parser.go")
	require.Equal(t, 1, f.git.calls)
}

func TestResourceHandlerCommitOutcomes(t *testing.T) {
	f := newResourceFixture(t)
	repo := makeTestRepo(t)
	ctx := context.Background()

	rec := f.get("/git/cafebabe")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found", rec.Body.String())

	grant, err := f.authz.AuthorizeGitCommit(ctx, repo, "abc1234", time.Minute)
	require.NoError(t, err)

	f.git.err = errors.New("fatal: bad object abc1234")
	rec = f.get("/git/" + grant.Token)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal server error", rec.Body.String())

	f.clock.Advance(time.Hour)
	rec = f.get("/git/" + grant.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "git commit")
	require.Contains(t, rec.Body.String(), "has expired")
}

func TestResourceHandlerRepositoryGone(t *testing.T) {
	f := newResourceFixture(t)
	repo := makeTestRepo(t)

	grant, err := f.authz.AuthorizeGitCommit(context.Background(), repo, "abc1234", time.Hour)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(repo))

	rec := f.get("/git/" + grant.Token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Repository no longer exists on disk", rec.Body.String())
	require.Zero(t, f.git.calls)
}

type ctxKey struct{}

// recordingLookup captures the context each lookup runs under.
type recordingLookup struct {
	seen []any
}

func (r *recordingLookup) LookupFile(ctx context.Context, _ string) (*models.FileAuthorization, services.Status, error) {
	r.seen = append(r.seen, ctx.Value(ctxKey{}))
	return nil, services.StatusNotFound, nil
}

func (r *recordingLookup) LookupGit(ctx context.Context, _ string) (*models.GitAuthorization, services.Status, error) {
	r.seen = append(r.seen, ctx.Value(ctxKey{}))
	return nil, services.StatusNotFound, nil
}

func TestResourceHandlerUsesRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry, err := render.NewRegistry(render.Options{})
	require.NoError(t, err)
	lookup := &recordingLookup{}
	handler, err := NewResourceHandler(lookup, &stubGitReader{}, registry)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/f/:token/:filename", handler.File)
	r.GET("/git/:token", handler.Commit)

	for _, path := range []string{"/f/abcd1234/a.txt", "/git/abcd1234"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "request-scoped"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	require.Equal(t, []any{"request-scoped", "request-scoped"}, lookup.seen)
}

func TestNewResourceHandlerValidatesDependencies(t *testing.T) {
	_, err := NewResourceHandler(nil, &stubGitReader{}, nil)
	require.Error(t, err)
}

func TestLineCount(t *testing.T) {
	require.Nil(t, lineCount(""))
	require.Nil(t, lineCount("-1"))
	require.Nil(t, lineCount("1.5"))
	n := lineCount("0")
	require.NotNil(t, n)
	require.Equal(t, 0, *n)
}
