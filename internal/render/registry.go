package render

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/internal/gitinfo"
	"github.com/charlesng35/vibefs/pkg/logger"
)

// codeExtensions are rendered with syntax highlighting; everything else is served raw.
var codeExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".rs", ".rb", ".java", ".c", ".cpp", ".h", ".hpp",
	".cs", ".swift", ".kt", ".scala", ".sh", ".bash", ".zsh", ".fish", ".html", ".css", ".scss",
	".less", ".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".xml", ".sql", ".graphql", ".md",
	".rst", ".txt", ".lua", ".vim", ".el", ".clj", ".hs", ".ml", ".ex", ".exs", ".r", ".jl", ".pl",
	".pm", ".php", ".dockerfile", ".makefile", ".cmake", ".conf", ".env", ".gitignore", ".diff",
	".patch",
}

// codeFileNames are extensionless files that are still source code.
var codeFileNames = []string{"makefile", "dockerfile", "gnumakefile", "jenkinsfile"}

// Options configures a Registry.
type Options struct {
	Style       string
	LineNumbers bool
	Markdown    bool
	// HomeDir is abbreviated to ~ in displayed paths.
	HomeDir string
	Now     func() time.Time
}

// Registry maps files to renderers. It is built once at startup and read concurrently.
type Registry struct {
	byExtension map[string]ContentRenderer
	byName      map[string]ContentRenderer
	fallback    ContentRenderer
	commit      *CommitRenderer
	expired     *ExpiredRenderer
}

// NewRegistry parses the page templates and builds the extension map.
func NewRegistry(opts Options) (*Registry, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	if opts.Style == "" {
		opts.Style = "monokai"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}

	hl := newHighlighter(opts.Style, opts.LineNumbers)
	code := &CodeRenderer{tmpl: tmpl, hl: hl, home: opts.HomeDir, now: opts.Now}

	registry := &Registry{
		byExtension: make(map[string]ContentRenderer, len(codeExtensions)),
		byName:      make(map[string]ContentRenderer, len(codeFileNames)),
		fallback:    RawRenderer{},
		commit:      &CommitRenderer{tmpl: tmpl, hl: hl, home: opts.HomeDir, now: opts.Now},
		expired:     &ExpiredRenderer{tmpl: tmpl},
	}
	for _, ext := range codeExtensions {
		registry.byExtension[ext] = code
	}
	for _, name := range codeFileNames {
		registry.byName[name] = code
	}
	if opts.Markdown {
		markdown := newMarkdownRenderer(tmpl, opts.HomeDir, opts.Now)
		registry.byExtension[".md"] = markdown
		registry.byExtension[".markdown"] = markdown
	}

	logger.WithModule("render").Debug("renderer registry ready",
		zap.String("style", opts.Style),
		zap.Bool("line_numbers", opts.LineNumbers),
		zap.Bool("markdown", opts.Markdown),
	)
	return registry, nil
}

// For returns the renderer for path.
func (r *Registry) For(path string) ContentRenderer {
	base := strings.ToLower(filepath.Base(path))
	if renderer, ok := r.byExtension[filepath.Ext(base)]; ok {
		return renderer
	}
	if renderer, ok := r.byName[base]; ok {
		return renderer
	}
	return r.fallback
}

// RenderFile renders path with the renderer chosen by its extension.
func (r *Registry) RenderFile(path string, w Window) (Page, error) {
	return r.For(path).Render(path, w)
}

// RenderCommit renders a commit of the repository at repoPath.
func (r *Registry) RenderCommit(repoPath string, commit *gitinfo.Commit) (Page, error) {
	return r.commit.Render(repoPath, commit)
}

// RenderExpired renders the expired page for a resource display name.
func (r *Registry) RenderExpired(name string) (Page, error) {
	return r.expired.Render(name)
}
