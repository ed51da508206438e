package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/vibefs/internal/models"
	"github.com/charlesng35/vibefs/pkg/crypto"
	"github.com/charlesng35/vibefs/pkg/logger"
	"github.com/charlesng35/vibefs/pkg/metrics"
)

const (
	defaultTokenBytes = 4
	maxTokenAttempts  = 3
)

// Status is the outcome of a token lookup.
type Status string

const (
	StatusValid    Status = "valid"
	StatusExpired  Status = "expired"
	StatusNotFound Status = "not_found"
)

// Grant describes the authorization returned by an authorize call.
type Grant struct {
	Token       string
	DisplayName string
	ExpiresAt   time.Time
	IsNew       bool
}

// AuthorizationOption customises AuthorizationService behaviour.
type AuthorizationOption func(*AuthorizationService)

// WithAuthorizationClock injects a custom clock primarily for testing.
func WithAuthorizationClock(clock func() time.Time) AuthorizationOption {
	return func(s *AuthorizationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTokenBytes sets the number of random bytes per token.
func WithTokenBytes(size int) AuthorizationOption {
	return func(s *AuthorizationService) {
		if size > 0 {
			s.tokenBytes = size
		}
	}
}

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(gen func(size int) (string, error)) AuthorizationOption {
	return func(s *AuthorizationService) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

// AuthorizationService persists token bindings for files and git commits and answers
// lookups against them.
type AuthorizationService struct {
	db         *gorm.DB
	now        func() time.Time
	tokenBytes int
	newToken   func(size int) (string, error)

	// mu serialises check-then-act within the process; the transaction covers other processes.
	mu sync.Mutex
}

// NewAuthorizationService constructs an AuthorizationService backed by db.
func NewAuthorizationService(db *gorm.DB, opts ...AuthorizationOption) (*AuthorizationService, error) {
	if db == nil {
		return nil, errors.New("authorization service: db is required")
	}

	service := &AuthorizationService{
		db:         db,
		now:        time.Now,
		tokenBytes: defaultTokenBytes,
		newToken:   crypto.GenerateHexToken,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AuthorizeFile grants access to the file at path for ttl. A live authorization for the
// same file is extended instead of minting a new token.
func (s *AuthorizationService) AuthorizeFile(ctx context.Context, path string, ttl time.Duration) (Grant, error) {
	if ttl <= 0 {
		return Grant{}, ErrInvalidTTL
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
	}
	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return Grant{}, fmt.Errorf("%w: %s", ErrResourceNotFound, absPath)
	}
	name := filepath.Base(absPath)

	grant, err := s.createOrExtend(ctx, binding{
		kind:    models.KindFile,
		table:   models.FileAuthorization{}.TableName(),
		locator: map[string]any{"file_path": absPath},
		build: func(token string, createdAt, expiresAt float64) any {
			return &models.FileAuthorization{
				Token:     token,
				FilePath:  absPath,
				FileName:  name,
				CreatedAt: createdAt,
				ExpiresAt: expiresAt,
			}
		},
	}, ttl)
	if err != nil {
		return Grant{}, fmt.Errorf("authorization service: authorize file: %w", err)
	}

	grant.DisplayName = name
	return grant, nil
}

// AuthorizeGitCommit grants access to one commit of the repository at repoPath for ttl.
func (s *AuthorizationService) AuthorizeGitCommit(ctx context.Context, repoPath, commit string, ttl time.Duration) (Grant, error) {
	if ttl <= 0 {
		return Grant{}, ErrInvalidTTL
	}

	commit = strings.TrimSpace(commit)
	if commit == "" {
		return Grant{}, ErrInvalidCommit
	}

	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %s", ErrNotAGitRepository, repoPath)
	}
	// Worktrees and submodules carry a .git file rather than a directory.
	if _, err := os.Stat(filepath.Join(absRepo, ".git")); err != nil {
		return Grant{}, fmt.Errorf("%w: %s", ErrNotAGitRepository, absRepo)
	}

	grant, err := s.createOrExtend(ctx, binding{
		kind:    models.KindGit,
		table:   models.GitAuthorization{}.TableName(),
		locator: map[string]any{"repo_path": absRepo, "commit_hash": commit},
		build: func(token string, createdAt, expiresAt float64) any {
			return &models.GitAuthorization{
				Token:      token,
				RepoPath:   absRepo,
				CommitHash: commit,
				CreatedAt:  createdAt,
				ExpiresAt:  expiresAt,
			}
		},
	}, ttl)
	if err != nil {
		return Grant{}, fmt.Errorf("authorization service: authorize git commit: %w", err)
	}

	grant.DisplayName = shortHash(commit)
	return grant, nil
}

// binding describes one resource locator in one of the two tables.
type binding struct {
	kind    models.Kind
	table   string
	locator map[string]any
	build   func(token string, createdAt, expiresAt float64) any
}

type liveRow struct {
	Token     string
	ExpiresAt float64
}

func (s *AuthorizationService) createOrExtend(ctx context.Context, b binding, ttl time.Duration) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var grant Grant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := models.Timestamp(s.now())
		expiresAt := now + ttl.Seconds()

		var existing liveRow
		err := tx.Table(b.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("token", "expires_at").
			Where(b.locator).
			Where("expires_at >= ?", now).
			Order("expires_at DESC").
			Take(&existing).Error
		switch {
		case err == nil:
			// Expiry is never shortened by a later, smaller ttl.
			if expiresAt > existing.ExpiresAt {
				if err := tx.Table(b.table).Where("token = ?", existing.Token).Update("expires_at", expiresAt).Error; err != nil {
					return err
				}
			} else {
				expiresAt = existing.ExpiresAt
			}
			grant = Grant{Token: existing.Token, ExpiresAt: models.FromTimestamp(expiresAt)}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		for attempt := 0; attempt < maxTokenAttempts; attempt++ {
			token, err := s.newToken(s.tokenBytes)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			taken, err := tokenTaken(tx, token)
			if err != nil {
				return err
			}
			if taken {
				continue
			}

			if err := tx.SavePoint("mint").Error; err != nil {
				return fmt.Errorf("savepoint: %w", err)
			}
			if err := tx.Create(b.build(token, now, expiresAt)).Error; err != nil {
				if isUniqueConstraintError(err) {
					if rbErr := tx.RollbackTo("mint").Error; rbErr != nil {
						return fmt.Errorf("rollback to savepoint: %w", rbErr)
					}
					continue
				}
				return err
			}

			grant = Grant{Token: token, ExpiresAt: models.FromTimestamp(expiresAt), IsNew: true}
			return nil
		}
		return fmt.Errorf("token collision after %d attempts", maxTokenAttempts)
	})
	if err != nil {
		return Grant{}, err
	}

	result := "extended"
	if grant.IsNew {
		result = "new"
	}
	metrics.AuthorizationsIssued.WithLabelValues(string(b.kind), result).Inc()
	logger.WithModule("authz").Debug("authorization issued",
		zap.String("kind", string(b.kind)),
		zap.String("result", result),
		zap.Time("expires_at", grant.ExpiresAt),
	)

	return grant, nil
}

// tokenTaken reports whether token is bound in either table, so a token never
// identifies two resources.
func tokenTaken(tx *gorm.DB, token string) (bool, error) {
	for _, table := range []string{models.FileAuthorization{}.TableName(), models.GitAuthorization{}.TableName()} {
		var count int64
		if err := tx.Table(table).Where("token = ?", token).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

type expiring interface {
	ExpiresAtSeconds() float64
}

func lookupToken[T expiring](ctx context.Context, db *gorm.DB, now time.Time, token string) (*T, Status, error) {
	var record T
	err := db.WithContext(ctx).Where("token = ?", token).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, StatusNotFound, nil
	}
	if err != nil {
		return nil, "", err
	}

	if models.Timestamp(now) > record.ExpiresAtSeconds() {
		return &record, StatusExpired, nil
	}
	return &record, StatusValid, nil
}

// LookupFile resolves a file token. Expired records are returned alongside StatusExpired.
func (s *AuthorizationService) LookupFile(ctx context.Context, token string) (*models.FileAuthorization, Status, error) {
	record, status, err := lookupToken[models.FileAuthorization](ctx, s.db, s.now(), token)
	if err != nil {
		return nil, "", fmt.Errorf("authorization service: lookup file: %w", err)
	}
	return record, status, nil
}

// LookupGit resolves a git commit token.
func (s *AuthorizationService) LookupGit(ctx context.Context, token string) (*models.GitAuthorization, Status, error) {
	record, status, err := lookupToken[models.GitAuthorization](ctx, s.db, s.now(), token)
	if err != nil {
		return nil, "", fmt.Errorf("authorization service: lookup git: %w", err)
	}
	return record, status, nil
}

// RevokeFile deletes a file authorization, reporting whether it existed.
func (s *AuthorizationService) RevokeFile(ctx context.Context, token string) (bool, error) {
	return s.revoke(ctx, models.KindFile, &models.FileAuthorization{}, token)
}

// RevokeGit deletes a git commit authorization, reporting whether it existed.
func (s *AuthorizationService) RevokeGit(ctx context.Context, token string) (bool, error) {
	return s.revoke(ctx, models.KindGit, &models.GitAuthorization{}, token)
}

// Revoke deletes token from whichever table holds it, trying files first.
func (s *AuthorizationService) Revoke(ctx context.Context, token string) (models.Kind, bool, error) {
	removed, err := s.RevokeFile(ctx, token)
	if err != nil || removed {
		return models.KindFile, removed, err
	}

	removed, err = s.RevokeGit(ctx, token)
	if err != nil || removed {
		return models.KindGit, removed, err
	}
	return "", false, nil
}

func (s *AuthorizationService) revoke(ctx context.Context, kind models.Kind, model any, token string) (bool, error) {
	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(model)
	if result.Error != nil {
		return false, fmt.Errorf("authorization service: revoke %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	metrics.AuthorizationsRevoked.WithLabelValues(string(kind)).Inc()
	logger.WithModule("authz").Debug("authorization revoked", zap.String("kind", string(kind)))
	return true, nil
}

// ListFiles returns every file authorization, newest first, expired ones included.
func (s *AuthorizationService) ListFiles(ctx context.Context) ([]models.FileAuthorization, error) {
	var records []models.FileAuthorization
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("authorization service: list files: %w", err)
	}
	return records, nil
}

// ListGit returns every git commit authorization, newest first.
func (s *AuthorizationService) ListGit(ctx context.Context) ([]models.GitAuthorization, error) {
	var records []models.GitAuthorization
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("authorization service: list git: %w", err)
	}
	return records, nil
}

// CountActive returns the number of unexpired authorizations per table.
func (s *AuthorizationService) CountActive(ctx context.Context) (files, git int64, err error) {
	now := models.Timestamp(s.now())

	if err := s.db.WithContext(ctx).Model(&models.FileAuthorization{}).Where("expires_at > ?", now).Count(&files).Error; err != nil {
		return 0, 0, fmt.Errorf("authorization service: count files: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.GitAuthorization{}).Where("expires_at > ?", now).Count(&git).Error; err != nil {
		return 0, 0, fmt.Errorf("authorization service: count git: %w", err)
	}
	return files, git, nil
}

// HasActive reports whether any authorization in either table is unexpired.
func (s *AuthorizationService) HasActive(ctx context.Context) (bool, error) {
	files, git, err := s.CountActive(ctx)
	if err != nil {
		return false, err
	}
	return files+git > 0, nil
}

// PurgeExpired deletes authorizations that expired more than olderThan ago and returns
// how many rows were removed.
func (s *AuthorizationService) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < 0 {
		olderThan = 0
	}
	cutoff := models.Timestamp(s.now().Add(-olderThan))

	var removed int64
	for _, model := range []any{&models.FileAuthorization{}, &models.GitAuthorization{}} {
		result := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(model)
		if result.Error != nil {
			return removed, fmt.Errorf("authorization service: purge expired: %w", result.Error)
		}
		removed += result.RowsAffected
	}
	return removed, nil
}

func shortHash(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
