package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/shared"
)

const (
	postColumns    = `id, user_id, post_title, summary, author, category, img_url, main_content, is_active, created_at, updated_at`
	summaryColumns = `id, user_id, post_title, summary, author, category, img_url, is_active, created_at`
)

// Repository provides PostgreSQL backed persistence for posts and comments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPosts returns active posts matching filter, newest first.
func (r *Repository) ListPosts(ctx context.Context, filter ListFilter) ([]PostSummary, int, error) {
	where := ` WHERE is_active`
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND (post_title ILIKE $1 OR summary ILIKE $1 OR author ILIKE $1 OR category::text ILIKE $1)`
	}
	return r.listSummaries(ctx, where, args, filter.PageRequest)
}

// ListPostsByUser returns every post written by userID, including inactive ones.
func (r *Repository) ListPostsByUser(ctx context.Context, userID int64, page shared.PageRequest) ([]PostSummary, int, error) {
	return r.listSummaries(ctx, ` WHERE user_id = $1`, []any{userID}, page)
}

func (r *Repository) listSummaries(ctx context.Context, where string, args []any, page shared.PageRequest) ([]PostSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM blog_posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM blog_posts%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		summaryColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var posts []PostSummary
	for rows.Next() {
		var (
			p        PostSummary
			category string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Summary, &p.Author, &category, &p.ImgURL, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		p.Category = Category(category)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// GetPost fetches one post regardless of its active flag.
func (r *Repository) GetPost(ctx context.Context, id int64) (Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
}

// CreatePost inserts an active post.
func (r *Repository) CreatePost(ctx context.Context, in NewPost) (Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `INSERT INTO blog_posts (user_id, post_title, summary, author, category, img_url, main_content, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING `+postColumns,
		in.UserID, in.Title, in.Summary, in.Author, string(in.Category), in.ImgURL, in.MainContent))
}

// UpdatePost applies the non-nil fields of changes.
func (r *Repository) UpdatePost(ctx context.Context, id int64, changes PostChanges) (Post, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if changes.Title != nil {
		add("post_title", *changes.Title)
	}
	if changes.Summary != nil {
		add("summary", *changes.Summary)
	}
	if changes.Author != nil {
		add("author", *changes.Author)
	}
	if changes.Category != nil {
		add("category", string(*changes.Category))
	}
	if changes.ImgURL != nil {
		add("img_url", *changes.ImgURL)
	}
	if changes.MainContent != nil {
		add("main_content", *changes.MainContent)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE blog_posts SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), postColumns)
	return scanPost(r.pool.QueryRow(ctx, query, args...))
}

// DeactivatePost soft deletes a post.
func (r *Repository) DeactivatePost(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE blog_posts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UserActive reports the active flag of a user, or shared.ErrNotFound.
func (r *Repository) UserActive(ctx context.Context, userID int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, shared.ErrNotFound
	}
	return active, err
}

// CreateComment inserts a comment.
func (r *Repository) CreateComment(ctx context.Context, in NewComment) (Comment, error) {
	c := Comment{PostID: in.PostID, UserID: in.UserID, Body: in.Body}
	err := r.pool.QueryRow(ctx, `INSERT INTO post_comments (post_id, user_id, comment) VALUES ($1, $2, $3) RETURNING id, created_at`,
		in.PostID, in.UserID, in.Body).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// ListComments returns the comments of a post, oldest first.
func (r *Repository) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, post_id, user_id, comment, created_at FROM post_comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func scanPost(row pgx.Row) (Post, error) {
	var (
		p        Post
		category string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Summary, &p.Author, &category, &p.ImgURL, &p.MainContent, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, shared.ErrNotFound
		}
		return Post{}, err
	}
	p.Category = Category(category)
	return p, nil
}
