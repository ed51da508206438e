package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrResourceNotFound indicates the file to authorize does not exist or is not a regular file.
	ErrResourceNotFound = errors.New("authz: file not found")
	// ErrNotAGitRepository indicates the repository path has no .git entry.
	ErrNotAGitRepository = errors.New("authz: not a git repository")
	// ErrInvalidTTL indicates a zero or negative lifetime.
	ErrInvalidTTL = errors.New("authz: ttl must be positive")
	// ErrInvalidCommit indicates an empty commit identifier.
	ErrInvalidCommit = errors.New("authz: commit is required")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
