package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/internal/gitinfo"
	"github.com/charlesng35/vibefs/internal/models"
	"github.com/charlesng35/vibefs/internal/render"
	"github.com/charlesng35/vibefs/internal/services"
	appErrors "github.com/charlesng35/vibefs/pkg/errors"
	"github.com/charlesng35/vibefs/pkg/logger"
	"github.com/charlesng35/vibefs/pkg/metrics"
	"github.com/charlesng35/vibefs/pkg/response"
)

const expiredCommitName = "git commit"

// TokenLookup resolves tokens without mutating the store.
type TokenLookup interface {
	LookupFile(ctx context.Context, token string) (*models.FileAuthorization, services.Status, error)
	LookupGit(ctx context.Context, token string) (*models.GitAuthorization, services.Status, error)
}

// PageRenderer produces the HTML (or raw) bodies served for resources.
type PageRenderer interface {
	RenderFile(path string, w render.Window) (render.Page, error)
	RenderCommit(repoPath string, commit *gitinfo.Commit) (render.Page, error)
	RenderExpired(name string) (render.Page, error)
}

// ResourceHandler serves authorized files and commits.
type ResourceHandler struct {
	tokens   TokenLookup
	git      gitinfo.Reader
	renderer PageRenderer
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(tokens TokenLookup, git gitinfo.Reader, renderer PageRenderer) (*ResourceHandler, error) {
	if tokens == nil {
		return nil, errors.New("resource handler: token lookup is required")
	}
	if git == nil {
		return nil, errors.New("resource handler: git reader is required")
	}
	if renderer == nil {
		return nil, errors.New("resource handler: renderer is required")
	}
	return &ResourceHandler{tokens: tokens, git: git, renderer: renderer}, nil
}

// GET /f/:token/:filename
func (h *ResourceHandler) File(c *gin.Context) {
	record, status, err := h.tokens.LookupFile(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, models.KindFile, err)
		return
	}

	if status == services.StatusNotFound || record.FileName != c.Param("filename") {
		observe(models.KindFile, "not_found")
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	if status == services.StatusExpired {
		h.expired(c, models.KindFile, record.FileName)
		return
	}

	if info, statErr := os.Stat(record.FilePath); statErr != nil || info.IsDir() {
		observe(models.KindFile, "gone")
		response.Error(c, appErrors.ErrFileGone)
		return
	}

	page, err := h.renderer.RenderFile(record.FilePath, render.Window{
		Head: lineCount(c.Query("head")),
		Tail: lineCount(c.Query("tail")),
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			observe(models.KindFile, "gone")
			response.Error(c, appErrors.ErrFileGone)
			return
		}
		h.fail(c, models.KindFile, err)
		return
	}

	observe(models.KindFile, "valid")
	c.Data(http.StatusOK, page.ContentType, page.Body)
}

// GET /git/:token
func (h *ResourceHandler) Commit(c *gin.Context) {
	ctx := c.Request.Context()

	record, status, err := h.tokens.LookupGit(ctx, c.Param("token"))
	if err != nil {
		h.fail(c, models.KindGit, err)
		return
	}

	switch status {
	case services.StatusNotFound:
		observe(models.KindGit, "not_found")
		response.Error(c, appErrors.ErrNotFound)
		return
	case services.StatusExpired:
		h.expired(c, models.KindGit, expiredCommitName)
		return
	}

	if info, statErr := os.Stat(record.RepoPath); statErr != nil || !info.IsDir() {
		observe(models.KindGit, "gone")
		response.Error(c, appErrors.ErrRepositoryGone)
		return
	}

	commit, err := h.git.Commit(ctx, record.RepoPath, record.CommitHash)
	if err != nil {
		h.fail(c, models.KindGit, err)
		return
	}

	page, err := h.renderer.RenderCommit(record.RepoPath, commit)
	if err != nil {
		h.fail(c, models.KindGit, err)
		return
	}

	observe(models.KindGit, "valid")
	c.Data(http.StatusOK, page.ContentType, page.Body)
}

func (h *ResourceHandler) expired(c *gin.Context, kind models.Kind, name string) {
	page, err := h.renderer.RenderExpired(name)
	if err != nil {
		h.fail(c, kind, err)
		return
	}
	observe(kind, "expired")
	c.Data(http.StatusOK, page.ContentType, page.Body)
}

func (h *ResourceHandler) fail(c *gin.Context, kind models.Kind, err error) {
	observe(kind, "error")
	logger.WithModule("http").Error("resource request failed",
		zap.String("kind", string(kind)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
}

func observe(kind models.Kind, outcome string) {
	metrics.ResourceRequests.WithLabelValues(string(kind), outcome).Inc()
}

// lineCount parses a head/tail query value. Anything but a non-negative integer is absent.
func lineCount(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
