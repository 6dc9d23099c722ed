// Package store reads and writes pipeline records in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Option configures a Postgres store
type Option func(*Postgres)

// WithLogger sets the logger for the store
func WithLogger(l *slog.Logger) Option {
	return func(p *Postgres) {
		if l != nil {
			p.logger = l
		}
	}
}

// Postgres implements the persistent store on top of pgx.
type Postgres struct {
	db     DB
	logger *slog.Logger
}

// New returns a store backed by db, usually a *pgxpool.Pool.
func New(db DB, opts ...Option) *Postgres {
	p := &Postgres{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logger.Component("store"))
	return p
}

const updatePostAnalysisSQL = `
UPDATE posts
SET llm_description = $2,
    auto_tags = $3,
    scene_type = $4,
    mood = $5,
    safety_score = $6,
    alt_text = $7
WHERE id = $1`

// UpdatePostAnalysis writes the six analysis fields in one statement.
func (p *Postgres) UpdatePostAnalysis(ctx context.Context, postID string, a domain.PostAnalysis) error {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	tag, err := p.db.Exec(ctx, updatePostAnalysisSQL,
		postID, a.Description, tags, a.SceneType, a.Mood, a.SafetyScore, a.AltText)
	if err != nil {
		return fmt.Errorf("update analysis of post %s: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	return nil
}

const getPostSQL = `
SELECT p.id, p.creator_wallet, p.content_uri, p.content_type, p.caption,
       p.likes, p.comments, p.tips_received, p.timestamp,
       p.llm_description, p.auto_tags, p.scene_type, p.mood, p.safety_score, p.alt_text,
       u.wallet, u.username, u.bio, u.profile_image_uri,
       u.follower_count, u.following_count, u.post_count, u.is_verified, u.created_at
FROM posts p
LEFT JOIN users u ON u.wallet = p.creator_wallet
WHERE p.id = $1`

// GetPost returns the post joined with its creator profile.
func (p *Postgres) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	var (
		post    domain.Post
		creator struct {
			wallet                          *string
			followers, following, postCount *int32
			verified                        *bool
		}
		profile domain.Profile
	)

	err := p.db.QueryRow(ctx, getPostSQL, postID).Scan(
		&post.ID, &post.CreatorWallet, &post.ContentURI, &post.ContentType, &post.Caption,
		&post.Likes, &post.Comments, &post.TipsReceived, &post.Timestamp,
		&post.LLMDescription, &post.AutoTags, &post.SceneType, &post.Mood, &post.SafetyScore, &post.AltText,
		&creator.wallet, &profile.Username, &profile.Bio, &profile.ProfileImageURI,
		&creator.followers, &creator.following, &creator.postCount, &creator.verified, &profile.CreatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}

	if creator.wallet != nil {
		profile.Wallet = *creator.wallet
		profile.FollowerCount = int(deref(creator.followers))
		profile.FollowingCount = int(deref(creator.following))
		profile.PostCount = int(deref(creator.postCount))
		profile.IsVerified = deref(creator.verified)
		post.Creator = &profile
	}

	return &post, nil
}

const getLatestCommentSQL = `
SELECT id, post_id, commenter_wallet, text, timestamp
FROM comments
WHERE post_id = $1
ORDER BY timestamp DESC
LIMIT 1`

// GetLatestComment returns the newest comment of a post.
func (p *Postgres) GetLatestComment(ctx context.Context, postID string) (*domain.Comment, error) {
	var c domain.Comment
	err := p.db.QueryRow(ctx, getLatestCommentSQL, postID).
		Scan(&c.ID, &c.PostID, &c.CommenterWallet, &c.Text, &c.Timestamp)
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("latest comment of post %s: %w", postID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest comment of post %s: %w", postID, err)
	}
	return &c, nil
}

const updateTransactionStatusSQL = `UPDATE transactions SET status = $2 WHERE signature = $1`

// UpdateTransactionStatus sets the status of the transaction with signature.
func (p *Postgres) UpdateTransactionStatus(ctx context.Context, signature, status string) error {
	tag, err := p.db.Exec(ctx, updateTransactionStatusSQL, signature, status)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", signature, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", signature, domain.ErrNotFound)
	}

	p.logger.DebugContext(ctx, "transaction status updated",
		slog.String("signature", signature),
		slog.String("status", status))
	return nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
