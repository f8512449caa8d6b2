package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postgen/internal/domain"
)

const listLimit = 200

// FileStore persists posts as JSON documents on the local filesystem, one
// file per post under a directory per user. It backs ARTIFACT_STORE=file for
// development and tests where PostgreSQL is not available.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Save writes a new draft post and returns its id.
func (s *FileStore) Save(ctx context.Context, userID, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.now().UTC()
	post := domain.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Status:    domain.PostStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writePost(post); err != nil {
		return "", err
	}
	return post.ID, nil
}

// List returns the user's posts, newest first.
func (s *FileStore) List(ctx context.Context, userID string) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list posts: %w", err)
	}
	posts := make([]domain.Post, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		p, err := readPost(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if len(posts) > listLimit {
		posts = posts[:listLimit]
	}
	return posts, nil
}

func (s *FileStore) Get(ctx context.Context, userID, postID string) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.postPath(userID, postID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readPost(path)
}

func (s *FileStore) Update(ctx context.Context, userID, postID, content string) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.postPath(userID, postID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	post, err := readPost(path)
	if err != nil {
		return nil, err
	}
	post.Content = content
	post.UpdatedAt = s.now().UTC()
	if err := s.writePost(*post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *FileStore) Delete(ctx context.Context, userID, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.postPath(userID, postID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("storage: delete post: %w", err)
	}
	return nil
}

// writePost replaces the file atomically. Callers hold mu.
func (s *FileStore) writePost(post domain.Post) error {
	path, err := s.postPath(post.UserID, post.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode post: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write file: %w", err)
	}
	return nil
}

func readPost(path string) (*domain.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read post: %w", err)
	}
	var p domain.Post
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

func (s *FileStore) userDir(userID string) (string, error) {
	key, err := sanitizeKey(userID)
	if err != nil || strings.Contains(key, "/") {
		return "", fmt.Errorf("%w: invalid user id", domain.ErrValidation)
	}
	return filepath.Join(s.basePath, "posts", key), nil
}

// postPath only accepts uuid post ids, so an unknown or malformed id is
// indistinguishable from a missing post.
func (s *FileStore) postPath(userID, postID string) (string, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return "", domain.ErrNotFound
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, postID+".json"), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ domain.PostRepository = (*FileStore)(nil)
