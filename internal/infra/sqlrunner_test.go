package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const markedSelect = "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;"

type recordingDB struct {
	queries []string
	delay   time.Duration
	err     error
}

func (d *recordingDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	d.queries = append(d.queries, query)
	time.Sleep(d.delay)
	return pgconn.NewCommandTag("UPDATE 1"), d.err
}

func (d *recordingDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	d.queries = append(d.queries, query)
	return nil, d.err
}

func (d *recordingDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	d.queries = append(d.queries, query)
	return errorRow{err: d.err}
}

func newTestRunner(db SQLExecutor) (*SQLRunner, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSQLRunner(db, zerolog.New(&buf).Level(zerolog.DebugLevel)), &buf
}

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker("\n--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;\n")
	require.NoError(t, err)
	assert.Equal(t, "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7", marker)
	assert.Equal(t, "select 1;", body)

	for _, q := range []string{"", "select 1", "--sql nope\nselect 1"} {
		_, _, err := ExtractMarker(q)
		assert.Error(t, err, q)
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	db := &recordingDB{}
	runner, buf := newTestRunner(db)

	tag, err := runner.Exec(context.Background(), markedSelect)
	require.NoError(t, err)
	assert.EqualValues(t, 1, tag.RowsAffected())
	assert.Equal(t, []string{"select 1;"}, db.queries)
	assert.Contains(t, buf.String(), `"sql":"8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	db := &recordingDB{}
	runner, _ := newTestRunner(db)

	_, err := runner.Exec(context.Background(), "delete from generation_jobs")
	assert.ErrorIs(t, err, ErrMissingMarker)
	_, err = runner.Query(context.Background(), "select 1")
	assert.ErrorIs(t, err, ErrMissingMarker)
	assert.ErrorIs(t, runner.QueryRow(context.Background(), "select 1").Scan(), ErrMissingMarker)
	assert.Empty(t, db.queries)
}

func TestSQLRunnerLogLevels(t *testing.T) {
	t.Run("failure", func(t *testing.T) {
		runner, buf := newTestRunner(&recordingDB{err: errors.New("connection reset")})
		_, err := runner.Exec(context.Background(), markedSelect)
		require.Error(t, err)
		assert.Contains(t, buf.String(), `"level":"error"`)
	})
	t.Run("no rows is not an error", func(t *testing.T) {
		runner, buf := newTestRunner(&recordingDB{err: pgx.ErrNoRows})
		err := runner.QueryRow(context.Background(), markedSelect).Scan()
		assert.True(t, IsNoRows(err))
		assert.NotContains(t, buf.String(), `"level":"error"`)
	})
	t.Run("slow", func(t *testing.T) {
		runner, buf := newTestRunner(&recordingDB{delay: 5 * time.Millisecond})
		runner.slowQuery = time.Millisecond
		_, err := runner.Exec(context.Background(), markedSelect)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"level":"warn"`)
		assert.Contains(t, buf.String(), `"slow":true`)
	})
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}
