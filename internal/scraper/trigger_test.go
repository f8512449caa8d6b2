package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestHTTPTriggerPostsTopic(t *testing.T) {
	var got topicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape/topic", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"job_id":"scrape-42"}`))
	}))
	defer srv.Close()

	trigger, err := NewHTTPTrigger(HTTPOptions{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	id, err := trigger.StartTopicScrape(context.Background(), "u1", "green logistics")
	require.NoError(t, err)
	assert.Equal(t, "scrape-42", id)
	assert.Equal(t, topicRequest{UserID: "u1", Topic: "green logistics"}, got)
}

func TestHTTPTriggerErrors(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripFunc
		want string
	}{
		{
			name: "transport",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: refused")
			},
			want: "refused",
		},
		{
			name: "status",
			rt: func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("upstream down"))}, nil
			},
			want: "status 502: upstream down",
		},
		{
			name: "missing id",
			rt: func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{}`))}, nil
			},
			want: ErrNoJobID.Error(),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trigger, err := NewHTTPTrigger(HTTPOptions{BaseURL: "http://scraper", HTTPClient: &http.Client{Transport: tc.rt}})
			require.NoError(t, err)
			_, err = trigger.StartTopicScrape(context.Background(), "u", "t")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewHTTPTriggerRequiresURL(t *testing.T) {
	_, err := NewHTTPTrigger(HTTPOptions{BaseURL: "  "})
	assert.Error(t, err)
}

type fakeRequester struct {
	subject string
	payload any
	reply   string
	err     error
}

func (f *fakeRequester) RequestJSON(ctx context.Context, subject string, v, out any) error {
	f.subject = subject
	f.payload = v
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestBusTrigger(t *testing.T) {
	req := &fakeRequester{reply: `{"job_id":"b-1"}`}
	id, err := NewBusTrigger(req, "scraper.topic").StartTopicScrape(context.Background(), "u1", "ai")
	require.NoError(t, err)
	assert.Equal(t, "b-1", id)
	assert.Equal(t, "scraper.topic", req.subject)
	assert.Equal(t, topicRequest{UserID: "u1", Topic: "ai"}, req.payload)

	req = &fakeRequester{err: errors.New("nats: timeout")}
	_, err = NewBusTrigger(req, "scraper.topic").StartTopicScrape(context.Background(), "u1", "ai")
	assert.ErrorContains(t, err, "timeout")
}
