package domain

import (
	"context"
	"time"
)

// JobRegistry owns job records. Implementations must be safe for concurrent use.
type JobRegistry interface {
	Create(ctx context.Context, userID string, mode GenerationMode) (*Job, error)
	Get(ctx context.Context, jobID string) (*Job, error)
	Transition(ctx context.Context, jobID string, next JobStatus, outcome Outcome) error
}

// JobEvicter is implemented by registries that can drop old terminal jobs.
type JobEvicter interface {
	EvictTerminal(ctx context.Context, before time.Time) (int, error)
}

// ProfileService reads onboarding answers for a user.
type ProfileService interface {
	// ProfileText returns ErrNotFound when the user has no onboarding profile.
	ProfileText(ctx context.Context, userID string) (string, error)
	// Style never fails; it falls back to DefaultStyle.
	Style(ctx context.Context, userID string) string
}

// DefaultStyle is used when a user has not recorded a writing style.
const DefaultStyle = "professional"

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorQuery scopes a similarity search to one namespace.
type VectorQuery struct {
	Vector    []float32
	Namespace string
	TopK      int
	Filter    map[string]string
}

// Match is one search hit, in relevance order.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// VectorSearcher runs similarity queries against the vector index.
type VectorSearcher interface {
	Query(ctx context.Context, q VectorQuery) ([]Match, error)
}

// Prompt is the two-part instruction sent to the language model.
type Prompt struct {
	System string
	User   string
}

// TextGenerator calls the language-model provider.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// HealthChecker is optionally implemented by collaborators that can verify
// reachability up front.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ArtifactStore persists generated content and returns its identifier.
type ArtifactStore interface {
	Save(ctx context.Context, userID, content string) (string, error)
}

// PostRepository is the full post store backing the /posts endpoints.
type PostRepository interface {
	ArtifactStore
	List(ctx context.Context, userID string) ([]Post, error)
	Get(ctx context.Context, userID, postID string) (*Post, error)
	Update(ctx context.Context, userID, postID, content string) (*Post, error)
	Delete(ctx context.Context, userID, postID string) error
}

// ScrapeTrigger asks the topic-discovery service to gather material for a topic.
type ScrapeTrigger interface {
	StartTopicScrape(ctx context.Context, userID, topic string) (string, error)
}

// JobNotifier is told about every job that reaches a terminal state.
type JobNotifier interface {
	JobFinished(ctx context.Context, job *Job)
}
