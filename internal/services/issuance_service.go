package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/pkg/logger"
)

const (
	defaultIssueTTL  = time.Hour
	defaultIssuePort = 17173
	defaultURLHost   = "localhost"
	defaultBindHost  = "0.0.0.0"
)

// Launcher starts the serving daemon on demand.
type Launcher interface {
	Status() daemon.Status
	Start(ctx context.Context, params daemon.ServeParams) (int, error)
}

// FileRequest asks for a shareable URL to a file. Zero TTL, Host and Port select defaults.
type FileRequest struct {
	Path string
	TTL  time.Duration
	Host string
	Port int
	Head *int
	Tail *int
}

// GitRequest asks for a shareable URL to one commit.
type GitRequest struct {
	RepoPath string
	Commit   string
	TTL      time.Duration
	Host     string
	Port     int
}

// Issued is the result of an issuance: the URL plus what happened to the daemon.
type Issued struct {
	URL string
	Grant
	DaemonStarted bool
	DaemonPID     int
	// DaemonErr is set when the daemon could not be started; the URL is still valid.
	DaemonErr error
}

// IssuanceOption customises IssuanceService behaviour.
type IssuanceOption func(*IssuanceService)

// WithBaseURL publishes URLs under baseURL instead of http://host:port.
func WithBaseURL(baseURL string) IssuanceOption {
	return func(s *IssuanceService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithDefaultTTL sets the lifetime used when a request carries none.
func WithDefaultTTL(ttl time.Duration) IssuanceOption {
	return func(s *IssuanceService) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithDefaultPort sets the port used when a request carries none.
func WithDefaultPort(port int) IssuanceOption {
	return func(s *IssuanceService) {
		if port > 0 {
			s.defaultPort = port
		}
	}
}

// WithBindHost sets the interface an auto-started daemon listens on.
func WithBindHost(host string) IssuanceOption {
	return func(s *IssuanceService) {
		if host = strings.TrimSpace(host); host != "" {
			s.bindHost = host
		}
	}
}

// IssuanceService authorizes resources, makes sure the daemon is up and formats URLs.
type IssuanceService struct {
	authz       *AuthorizationService
	launcher    Launcher
	baseURL     string
	defaultTTL  time.Duration
	defaultPort int
	bindHost    string
}

// NewIssuanceService constructs an IssuanceService.
func NewIssuanceService(authz *AuthorizationService, launcher Launcher, opts ...IssuanceOption) (*IssuanceService, error) {
	if authz == nil {
		return nil, errors.New("issuance service: authorization service is required")
	}
	if launcher == nil {
		return nil, errors.New("issuance service: launcher is required")
	}

	service := &IssuanceService{
		authz:       authz,
		launcher:    launcher,
		defaultTTL:  defaultIssueTTL,
		defaultPort: defaultIssuePort,
		bindHost:    defaultBindHost,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AuthorizeFile authorizes req.Path and returns its URL.
func (s *IssuanceService) AuthorizeFile(ctx context.Context, req FileRequest) (Issued, error) {
	if req.TTL < 0 {
		return Issued{}, ErrInvalidTTL
	}

	grant, err := s.authz.AuthorizeFile(ctx, req.Path, s.ttl(req.TTL))
	if err != nil {
		return Issued{}, err
	}

	port := s.port(req.Port)
	link := s.origin(req.Host, port) + "/f/" + grant.Token + "/" + url.PathEscape(grant.DisplayName)

	params := make([]string, 0, 2)
	if req.Head != nil {
		params = append(params, "head="+strconv.Itoa(*req.Head))
	}
	if req.Tail != nil {
		params = append(params, "tail="+strconv.Itoa(*req.Tail))
	}
	if len(params) > 0 {
		link += "?" + strings.Join(params, "&")
	}

	issued := Issued{URL: link, Grant: grant}
	s.ensureDaemon(ctx, port, &issued)
	return issued, nil
}

// AuthorizeGitCommit authorizes one commit and returns its URL.
func (s *IssuanceService) AuthorizeGitCommit(ctx context.Context, req GitRequest) (Issued, error) {
	if req.TTL < 0 {
		return Issued{}, ErrInvalidTTL
	}

	grant, err := s.authz.AuthorizeGitCommit(ctx, req.RepoPath, req.Commit, s.ttl(req.TTL))
	if err != nil {
		return Issued{}, err
	}

	port := s.port(req.Port)
	issued := Issued{URL: s.origin(req.Host, port) + "/git/" + grant.Token, Grant: grant}
	s.ensureDaemon(ctx, port, &issued)
	return issued, nil
}

func (s *IssuanceService) ensureDaemon(ctx context.Context, port int, issued *Issued) {
	if status := s.launcher.Status(); status.Running {
		issued.DaemonPID = status.PID
		return
	}

	pid, err := s.launcher.Start(ctx, daemon.ServeParams{Port: port, Host: s.bindHost})
	if err != nil {
		issued.DaemonErr = fmt.Errorf("issuance service: start daemon: %w", err)
		logger.WithModule("daemon").Warn("failed to start daemon", zap.Int("port", port), zap.Error(err))
		return
	}
	issued.DaemonStarted = true
	issued.DaemonPID = pid
}

func (s *IssuanceService) origin(host string, port int) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = defaultURLHost
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func (s *IssuanceService) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return s.defaultTTL
	}
	return ttl
}

func (s *IssuanceService) port(port int) int {
	if port <= 0 {
		return s.defaultPort
	}
	return port
}
