// Package mongo mirrors crawl results into MongoDB.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

const (
	runsCollection     = "crawl_runs"
	commentsCollection = "comments"
	defaultDBName      = "commentcrawl"
)

// Sink is a thin adapter over the two collections
type Sink struct {
	client   *mongodriver.Client
	db       *mongodriver.Database
	runs     *mongodriver.Collection
	comments *mongodriver.Collection
}

// New connects, pings and prepares indexes. The database is taken from the
// URI path, then from database, then the default.
func New(ctx context.Context, uri, database string) (*Sink, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri, database))
	s := &Sink{
		client:   cli,
		db:       db,
		runs:     db.Collection(runsCollection),
		comments: db.Collection(commentsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *Sink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ensureIndexes creates the lookup indexes:
// - comments of a run in id order: run_id + id (unique)
// - replies of a root: run_id + parent_id
// - runs of an article: url + started_at(desc)
func (s *Sink) ensureIndexes(ctx context.Context) error {
	_, err := s.comments.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetName("run_id_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("run_parent"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	_, err = s.runs.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}, {Key: "started_at", Value: -1}},
		Options: options.Index().SetName("url_started_desc"),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

type runDocument struct {
	RunID      string               `bson:"_id"`
	Title      string               `bson:"title"`
	URL        string               `bson:"url"`
	Visited    int                  `bson:"visited"`
	Comments   int                  `bson:"comments"`
	Roots      int                  `bson:"roots"`
	Expansion  types.ExpansionStats `bson:"expansion"`
	Error      string               `bson:"error,omitempty"`
	StartedAt  time.Time            `bson:"started_at"`
	FinishedAt time.Time            `bson:"finished_at"`
}

type commentDocument struct {
	RunID         string  `bson:"run_id"`
	ID            int     `bson:"id"`
	IsReply       bool    `bson:"is_reply"`
	ParentID      *int    `bson:"parent_id,omitempty"`
	ReplyToAuthor *string `bson:"reply_to_author,omitempty"`
	Author        string  `bson:"author"`
	Text          string  `bson:"text"`
	LikeCount     string  `bson:"like_count"`
	PostedAt      string  `bson:"posted_at"`
	ArticleTitle  string  `bson:"article_title"`
	ArticleURL    string  `bson:"article_url"`
}

func toDocuments(c *types.Crawl) (runDocument, []any) {
	run := runDocument{
		RunID:      c.RunID,
		Title:      c.Article.Title,
		URL:        c.Article.URL,
		Visited:    c.Visited,
		Comments:   len(c.Comments),
		Roots:      c.Roots(),
		Expansion:  c.Expansion,
		Error:      c.Error,
		StartedAt:  c.StartedAt.UTC(),
		FinishedAt: c.FinishedAt.UTC(),
	}

	docs := make([]any, 0, len(c.Comments))
	for _, r := range c.Rows() {
		docs = append(docs, commentDocument{
			RunID:         c.RunID,
			ID:            r.ID,
			IsReply:       r.IsReply,
			ParentID:      r.ParentID,
			ReplyToAuthor: r.ReplyToAuthor,
			Author:        r.Author,
			Text:          r.Text,
			LikeCount:     r.LikeCount,
			PostedAt:      r.PostedAt,
			ArticleTitle:  r.ArticleTitle,
			ArticleURL:    r.ArticleURL,
		})
	}
	return run, docs
}

// SaveCrawl upserts the run and replaces its comments
func (s *Sink) SaveCrawl(ctx context.Context, c *types.Crawl) error {
	run, docs := toDocuments(c)

	_, err := s.runs.ReplaceOne(ctx, bson.M{"_id": run.RunID}, run, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save run: %w", err)
	}

	if _, err := s.comments.DeleteMany(ctx, bson.M{"run_id": run.RunID}); err != nil {
		return fmt.Errorf("mongo clear comments: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.comments.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo insert comments: %w", err)
	}
	return nil
}

// CountComments returns how many comments are stored for a run
func (s *Sink) CountComments(ctx context.Context, runID string) (int64, error) {
	return s.comments.CountDocuments(ctx, bson.M{"run_id": runID})
}

// databaseFromURI extracts the database name from the mongodb URI path,
// falling back to fallback and then to the default.
func databaseFromURI(uri, fallback string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	if fallback != "" {
		return fallback
	}
	return defaultDBName
}
