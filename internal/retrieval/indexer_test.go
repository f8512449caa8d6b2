package retrieval

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgen/internal/domain"
	"postgen/internal/vectorstore"
)

func TestIndexProfileThenRetrieve(t *testing.T) {
	store, err := vectorstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	profiles := stubProfiles{text: "Product/Service: CRM. Ideal Customers: agencies. Problem Solved: churn."}
	ix := Indexer{Profiles: profiles, Embedder: &stubEmbedder{}, Store: store}

	doc, err := ix.IndexProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1:profile", doc.ID)
	assert.Equal(t, SourceTypeProfile, doc.SourceType)

	// re-indexing replaces rather than duplicates
	_, err = ix.IndexProfile(context.Background(), "u1")
	require.NoError(t, err)

	p, err := NewPipeline(Options{
		Profiles: profiles,
		Embedder: &stubEmbedder{},
		Searcher: store,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	res := p.Retrieve(context.Background(), Request{UserID: "u1"})
	require.Equal(t, KindOK, res.Kind)
	assert.Equal(t, profiles.text, res.Text)

	other := p.Retrieve(context.Background(), Request{UserID: "u2"})
	assert.Equal(t, KindEmpty, other.Kind, "namespaces are per user")
}

func TestIndexProfileErrors(t *testing.T) {
	store, err := vectorstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ix := Indexer{Profiles: stubProfiles{err: domain.ErrNotFound}, Embedder: &stubEmbedder{}, Store: store}
	_, err = ix.IndexProfile(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrProfileUnavailable)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ix.IndexProfile(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
