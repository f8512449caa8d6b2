package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"postgen/internal/domain"
	"postgen/internal/infra"
	"postgen/internal/sqlinline"
)

// PostRepositoryPG stores generated posts in linkedin_posts.
type PostRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPostRepository(sql infra.SQLExecutor) *PostRepositoryPG {
	return &PostRepositoryPG{sql: sql}
}

// Save inserts a draft post and returns its id.
func (r *PostRepositoryPG) Save(ctx context.Context, userID, content string) (string, error) {
	var id string
	if err := r.sql.QueryRow(ctx, sqlinline.QInsertLinkedInPost, userID, content).Scan(&id); err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

func (r *PostRepositoryPG) List(ctx context.Context, userID string) ([]domain.Post, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListLinkedInPosts, userID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepositoryPG) Get(ctx context.Context, userID, postID string) (*domain.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanPost(r.sql.QueryRow(ctx, sqlinline.QSelectLinkedInPost, postID, userID))
}

func (r *PostRepositoryPG) Update(ctx context.Context, userID, postID, content string) (*domain.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanPost(r.sql.QueryRow(ctx, sqlinline.QUpdateLinkedInPost, postID, userID, content))
}

func (r *PostRepositoryPG) Delete(ctx context.Context, userID, postID string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteLinkedInPost, postID, userID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p      domain.Post
		status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.Status = domain.PostStatus(status)
	return &p, nil
}

var _ domain.PostRepository = (*PostRepositoryPG)(nil)
