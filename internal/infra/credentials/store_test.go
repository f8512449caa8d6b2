package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgen/internal/sqlinline"
)

type stubExecutor struct {
	token   string
	err     error
	tag     string
	queried int
	query   string
	args    []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.query, s.args = query, args
	return pgconn.NewCommandTag(s.tag), s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestResolveGeminiAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		stub       *stubExecutor
		want       string
		wantErr    bool
		wantQuery  bool
	}{
		{name: "configured wins", configured: " from-env ", stub: &stubExecutor{token: "stored"}, want: "from-env"},
		{name: "stored fallback", stub: &stubExecutor{token: " abc123 "}, want: "abc123", wantQuery: true},
		{name: "nothing stored", stub: &stubExecutor{err: pgx.ErrNoRows}, want: "", wantQuery: true},
		{name: "database error", stub: &stubExecutor{err: errors.New("conn refused")}, wantErr: true, wantQuery: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := NewStore(tc.stub).ResolveGeminiAPIKey(context.Background(), tc.configured)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, key)
			}
			assert.Equal(t, tc.wantQuery, tc.stub.queried > 0)
		})
	}
}

func TestSetGeminiAPIKey(t *testing.T) {
	exec := &stubExecutor{tag: "INSERT 0 1"}
	fp, err := NewStore(exec).SetGeminiAPIKey(context.Background(), " AIzaSy-secret-9f2c ", "postgenctl")
	require.NoError(t, err)
	assert.Equal(t, "...9f2c", fp)

	assert.Equal(t, sqlinline.QUpsertIntegrationToken, exec.query)
	require.Len(t, exec.args, 3)
	assert.Equal(t, ProviderGemini, exec.args[0])
	assert.Equal(t, "AIzaSy-secret-9f2c", exec.args[1])

	var props tokenProperties
	require.NoError(t, json.Unmarshal(exec.args[2].([]byte), &props))
	assert.Equal(t, tokenProperties{Source: "postgenctl", Fingerprint: "...9f2c"}, props)
}

func TestSetGeminiAPIKeyEmpty(t *testing.T) {
	exec := &stubExecutor{}
	_, err := NewStore(exec).SetGeminiAPIKey(context.Background(), " ", "postgenctl")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.Empty(t, exec.query)
}

func TestDeleteGeminiAPIKey(t *testing.T) {
	removed, err := NewStore(&stubExecutor{tag: "DELETE 1"}).DeleteGeminiAPIKey(context.Background())
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = NewStore(&stubExecutor{tag: "DELETE 0"}).DeleteGeminiAPIKey(context.Background())
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "...wxyz", Fingerprint("abcdwxyz"))
	assert.Equal(t, "***", Fingerprint("abc"))
	assert.Equal(t, "", Fingerprint("  "))
}
