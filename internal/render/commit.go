package render

import (
	"html/template"
	"time"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/dustin/go-humanize"

	"github.com/charlesng35/vibefs/internal/gitinfo"
)

type commitFile struct {
	Path    string
	Added   string
	Deleted string
	Diff    template.HTML
}

type commitPage struct {
	Repo      string
	Hash      string
	ShortHash string
	Author    string
	Email     string
	Date      string
	Relative  string
	Subject   string
	Body      string
	CSS       template.CSS
	Files     []commitFile
}

// CommitRenderer renders a commit's metadata and highlighted per-file diffs.
type CommitRenderer struct {
	tmpl *template.Template
	hl   *highlighter
	home string
	now  func() time.Time
}

func (r *CommitRenderer) Render(repoPath string, commit *gitinfo.Commit) (Page, error) {
	css, err := r.hl.css()
	if err != nil {
		return Page{}, err
	}

	diffLexer := lexers.Get("diff")
	if diffLexer == nil {
		diffLexer = lexers.Fallback
	}

	page := commitPage{
		Repo:      displayPath(repoPath, r.home),
		Hash:      commit.Hash,
		ShortHash: shortHash(commit.Hash),
		Author:    commit.AuthorName,
		Email:     commit.AuthorEmail,
		Date:      commit.Date,
		Subject:   commit.Subject,
		Body:      commit.Body,
		CSS:       css,
		Files:     make([]commitFile, 0, len(commit.Files)),
	}
	if authored := commit.AuthoredAt(); !authored.IsZero() {
		page.Date = authored.Format("2006-01-02 15:04")
		page.Relative = humanize.RelTime(authored, r.now(), "ago", "from now")
	}

	for _, file := range commit.Files {
		diff, err := r.hl.highlight(diffLexer, file.Diff)
		if err != nil {
			return Page{}, err
		}
		entry := commitFile{Path: file.Path, Added: "-", Deleted: "-", Diff: diff}
		if !file.Binary() {
			entry.Added = humanize.Comma(int64(file.Added))
			entry.Deleted = humanize.Comma(int64(file.Deleted))
		}
		page.Files = append(page.Files, entry)
	}

	return executePage(r.tmpl, "commit.html", page)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
