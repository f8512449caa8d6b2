package retrieval

import (
	"context"
	"fmt"
	"strings"

	"postgen/internal/domain"
	"postgen/internal/vectorstore"
)

// DocumentWriter stores embedded documents.
type DocumentWriter interface {
	Upsert(ctx context.Context, doc vectorstore.Document) error
}

// Indexer writes a user's onboarding profile into their namespace so profile
// mode has something to retrieve. The embedder should produce document
// embeddings, not query embeddings.
type Indexer struct {
	Profiles domain.ProfileService
	Embedder domain.Embedder
	Store    DocumentWriter
}

// ProfileDocumentID is stable per user so re-indexing replaces the document.
func ProfileDocumentID(userID string) string {
	return userID + ":profile"
}

func (ix Indexer) IndexProfile(ctx context.Context, userID string) (vectorstore.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return vectorstore.Document{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	text, err := ix.Profiles.ProfileText(ctx, userID)
	if err != nil {
		return vectorstore.Document{}, fmt.Errorf("%w: %w", domain.ErrProfileUnavailable, err)
	}
	vector, err := ix.Embedder.Embed(ctx, text)
	if err != nil {
		return vectorstore.Document{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}
	doc := vectorstore.Document{
		ID:         ProfileDocumentID(userID),
		Namespace:  userID,
		Text:       text,
		SourceType: SourceTypeProfile,
		Vector:     vector,
	}
	if err := ix.Store.Upsert(ctx, doc); err != nil {
		return vectorstore.Document{}, err
	}
	return doc, nil
}
