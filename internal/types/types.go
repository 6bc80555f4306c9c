package types

import "time"

// CommentRecord represents one extracted comment or reply
type CommentRecord struct {
	ID            int     `json:"id"`
	IsReply       bool    `json:"is_reply"`
	ParentID      *int    `json:"parent_id,omitempty"`
	ReplyToAuthor *string `json:"reply_to_author,omitempty"`
	Author        string  `json:"author"`
	Text          string  `json:"text"`
	LikeCount     string  `json:"like_count"`
	PostedAt      string  `json:"posted_at"`
}

// Article identifies the crawled page
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ArticleComment is a record with the article metadata merged in, the shape
// written by every persistence path
type ArticleComment struct {
	CommentRecord
	ArticleTitle string `json:"article_title"`
	ArticleURL   string `json:"article_url"`
}

// ExpansionStats summarizes one run of the expansion loop
type ExpansionStats struct {
	Attempts   int    `json:"attempts"`
	IdleRounds int    `json:"idle_rounds"`
	Clicks     int    `json:"clicks"`
	Aborted    bool   `json:"aborted"`
	Reason     string `json:"reason,omitempty"` // why the loop stopped
}

// Crawl is the result of crawling one article
type Crawl struct {
	RunID      string          `json:"run_id"`
	Article    Article         `json:"article"`
	Comments   []CommentRecord `json:"comments"`
	Expansion  ExpansionStats  `json:"expansion"`
	Visited    int             `json:"visited"` // containers visited, including skipped ones
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Error      string          `json:"error,omitempty"`
}

// Roots returns the number of root comments
func (c *Crawl) Roots() int {
	n := 0
	for _, r := range c.Comments {
		if !r.IsReply {
			n++
		}
	}
	return n
}

// Replies returns the number of replies
func (c *Crawl) Replies() int {
	return len(c.Comments) - c.Roots()
}

// Rows attaches the article metadata to every record
func (c *Crawl) Rows() []ArticleComment {
	rows := make([]ArticleComment, len(c.Comments))
	for i, r := range c.Comments {
		rows[i] = ArticleComment{
			CommentRecord: r,
			ArticleTitle:  c.Article.Title,
			ArticleURL:    c.Article.URL,
		}
	}
	return rows
}
