// Package report renders the comment hierarchy of a crawl as plain text and
// HTML.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// Truncation limits, in runes
const (
	RootTextLimit  = 80
	ReplyTextLimit = 60
)

// ErrNoComments is returned for a crawl with nothing to report
var ErrNoComments = errors.New("no comments to report")

// Builder creates hierarchy reports from crawls
type Builder struct {
	template *template.Template
}

// New creates a new report builder
func New() (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{template: tmpl}, nil
}

// Report is a rendered hierarchy report
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	CreatedAt time.Time
}

// Thread is one root comment with its replies in id order
type Thread struct {
	Root    types.CommentRecord
	Replies []types.CommentRecord
}

// ReportData is the template data structure
type ReportData struct {
	Title    string
	URL      string
	Date     string
	RunID    string
	Threads  []ThreadData
	Roots    int
	Replies  int
	Warning  string
	Duration string
}

// ThreadData represents a thread in the report template
type ThreadData struct {
	Root    CommentData
	Replies []CommentData
}

// CommentData represents one comment in the report template
type CommentData struct {
	ID       int
	Author   string
	Text     string
	Likes    string
	PostedAt string
}

// Threads groups replies under their root. Records are ordered by id first,
// so the result does not depend on input order. Replies whose parent is
// missing are dropped.
func Threads(comments []types.CommentRecord) []Thread {
	sorted := make([]types.CommentRecord, len(comments))
	copy(sorted, comments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var threads []Thread
	index := make(map[int]int)
	for _, c := range sorted {
		if !c.IsReply {
			index[c.ID] = len(threads)
			threads = append(threads, Thread{Root: c})
		}
	}
	for _, c := range sorted {
		if !c.IsReply || c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			threads[i].Replies = append(threads[i].Replies, c)
		}
	}
	return threads
}

// Build creates a report from a crawl
func (b *Builder) Build(c *types.Crawl) (*Report, error) {
	if len(c.Comments) == 0 {
		return nil, ErrNoComments
	}

	now := time.Now()
	threads := Threads(c.Comments)
	data := ReportData{
		Title:   c.Article.Title,
		URL:     c.Article.URL,
		Date:    now.Format("2006-01-02 15:04"),
		RunID:   c.RunID,
		Threads: make([]ThreadData, len(threads)),
		Roots:   c.Roots(),
		Replies: c.Replies(),
		Warning: c.Error,
	}
	if !c.FinishedAt.IsZero() {
		data.Duration = c.FinishedAt.Sub(c.StartedAt).Round(time.Second).String()
	}

	for i, t := range threads {
		td := ThreadData{
			Root:    commentData(t.Root, RootTextLimit),
			Replies: make([]CommentData, len(t.Replies)),
		}
		for j, r := range t.Replies {
			td.Replies[j] = commentData(r, ReplyTextLimit)
		}
		data.Threads[i] = td
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("Comments: %s (%d roots, %d replies)", truncate(c.Article.Title, 40), data.Roots, data.Replies),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		CreatedAt: now,
	}, nil
}

// WriteText writes the plain text report to path
func (r *Report) WriteText(path string) error {
	return writeFile(path, r.PlainBody)
}

// WriteHTML writes the HTML report to path
func (r *Report) WriteHTML(path string) error {
	return writeFile(path, r.HTMLBody)
}

func writeFile(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func commentData(c types.CommentRecord, limit int) CommentData {
	return CommentData{
		ID:       c.ID,
		Author:   c.Author,
		Text:     truncate(c.Text, limit),
		Likes:    c.LikeCount,
		PostedAt: c.PostedAt,
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	buf.WriteString("=== Comment Hierarchy Report ===\n\n")
	buf.WriteString(fmt.Sprintf("Article: %s\n%s\n", data.Title, data.URL))
	buf.WriteString(fmt.Sprintf("Roots: %d | Replies: %d\n\n", data.Roots, data.Replies))

	for _, t := range data.Threads {
		buf.WriteString(fmt.Sprintf("🔹 Root [%d] %s\n", t.Root.ID, t.Root.Author))
		buf.WriteString(fmt.Sprintf("   Text: %s\n", t.Root.Text))
		buf.WriteString(fmt.Sprintf("   Likes: %s | Time: %s\n", t.Root.Likes, t.Root.PostedAt))

		if len(t.Replies) == 0 {
			buf.WriteString("   └── no replies\n")
		} else {
			buf.WriteString(fmt.Sprintf("   └── %d replies:\n", len(t.Replies)))
			for _, r := range t.Replies {
				buf.WriteString(fmt.Sprintf("       ├─ [%d] %s: %s\n", r.ID, r.Author, r.Text))
				buf.WriteString(fmt.Sprintf("          Likes: %s | Time: %s\n", r.Likes, r.PostedAt))
			}
		}

		buf.WriteString("\n" + strings.Repeat("=", 80) + "\n\n")
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'PingFang SC', sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #f04142; margin-bottom: 5px; }
        .meta { color: #666; margin-bottom: 20px; font-size: 13px; }
        .warning { background: #fff4e5; color: #8a5300; padding: 8px 12px; border-radius: 6px; margin-bottom: 15px; }
        .thread { border-bottom: 1px solid #eee; padding: 15px 0; }
        .thread:last-child { border-bottom: none; }
        .author { font-weight: bold; color: #333; }
        .id { color: #999; font-weight: normal; }
        .text { margin: 6px 0; line-height: 1.4; }
        .metrics { color: #666; font-size: 13px; }
        .replies { margin: 10px 0 0 20px; padding-left: 12px; border-left: 3px solid #f3d3d3; }
        .reply { padding: 6px 0; }
        .none { color: #999; font-size: 13px; margin-top: 6px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="meta"><a href="{{.URL}}">{{.URL}}</a><br>{{.Date}}{{if .Duration}} · took {{.Duration}}{{end}}</div>
        {{if .Warning}}<div class="warning">Partial result: {{.Warning}}</div>{{end}}

        {{range .Threads}}
        <div class="thread">
            <div class="author">{{.Root.Author}} <span class="id">#{{.Root.ID}}</span></div>
            <div class="text">{{.Root.Text}}</div>
            <div class="metrics">{{.Root.Likes}} likes · {{.Root.PostedAt}}</div>
            {{if .Replies}}
            <div class="replies">
                {{range .Replies}}
                <div class="reply">
                    <div class="author">{{.Author}} <span class="id">#{{.ID}}</span></div>
                    <div class="text">{{.Text}}</div>
                    <div class="metrics">{{.Likes}} likes · {{.PostedAt}}</div>
                </div>
                {{end}}
            </div>
            {{else}}
            <div class="none">No replies</div>
            {{end}}
        </div>
        {{end}}

        <div class="footer">
            {{.Roots}} comments · {{.Replies}} replies · run {{.RunID}} · Generated by commentcrawl
        </div>
    </div>
</body>
</html>`
