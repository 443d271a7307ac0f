package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/logger"
)

// fakeCluster stands in for a single-node Elasticsearch; it captures the
// last search body and answers with a canned hits payload.
func fakeCluster(t *testing.T, response string, captured *map[string]interface{}) *elasticsearch.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil && r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			if len(body) > 0 {
				json.Unmarshal(body, captured)
			}
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

const hitsResponse = `{
	"took": 4,
	"hits": {
		"total": {"value": 2},
		"hits": [
			{"_source": {"id": "sch-1", "title": "STEM Excellence Award", "amount": 8000, "is_active": true}},
			{"_source": {"id": "sch-2", "title": "Community Service Grant", "amount": 2000, "is_active": true}}
		]
	}
}`

func newTestService(t *testing.T, client *elasticsearch.Client) *Service {
	t.Helper()
	return NewService(client,
		config.ElasticsearchConfig{Index: "scholarships"},
		config.SearchConfig{PageSize: 20, MaxPageSize: 100},
		logger.NewTestLogger(t))
}

func TestSearch_MapsHitsToScholarships(t *testing.T) {
	client := fakeCluster(t, hitsResponse, nil)
	s := newTestService(t, client)

	result, err := s.Search(context.Background(), Query{Text: "stem"})

	assert.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalHits)
	require.Len(t, result.Scholarships, 2)
	assert.Equal(t, "sch-1", result.Scholarships[0].ID)
	assert.Equal(t, "STEM Excellence Award", result.Scholarships[0].Title)
	assert.Equal(t, 8000.0, result.Scholarships[0].Amount)
}

func TestSearch_SendsFiltersInQueryBody(t *testing.T) {
	var captured map[string]interface{}
	client := fakeCluster(t, hitsResponse, &captured)
	s := newTestService(t, client)

	_, err := s.Search(context.Background(), Query{
		Text:      "engineering",
		Tags:      []string{"STEM"},
		MinAmount: 1000,
		MaxAmount: 10000,
	})
	require.NoError(t, err)
	require.NotNil(t, captured)

	raw, _ := json.Marshal(captured)
	body := string(raw)
	assert.Contains(t, body, "engineering")
	assert.Contains(t, body, "STEM")
	assert.Contains(t, body, "deadline")
	assert.Contains(t, body, "is_active")
}

func TestSearch_ErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	s := newTestService(t, client)
	_, err = s.Search(context.Background(), Query{Text: "x"})
	assert.Error(t, err)
}

// ==========================
// Query Building
// ==========================

func TestBuildListingQuery(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty query falls back to match_all with mandatory filters", func(t *testing.T) {
		q := buildListingQuery(Query{}, now)
		raw, _ := json.Marshal(q)
		body := string(raw)

		assert.Contains(t, body, "match_all")
		assert.Contains(t, body, `"is_active":true`)
		assert.Contains(t, body, "2026-03-01")
	})

	t.Run("text becomes multi_match", func(t *testing.T) {
		q := buildListingQuery(Query{Text: "nursing"}, now)
		raw, _ := json.Marshal(q)

		assert.Contains(t, string(raw), "multi_match")
		assert.Contains(t, string(raw), "nursing")
		assert.NotContains(t, string(raw), "match_all")
	})

	t.Run("amount range honors both bounds", func(t *testing.T) {
		q := buildListingQuery(Query{MinAmount: 500, MaxAmount: 5000}, now)
		raw, _ := json.Marshal(q)

		assert.Contains(t, string(raw), `"gte":500`)
		assert.Contains(t, string(raw), `"lte":5000`)
	})

	t.Run("inverted amount range drops the upper bound", func(t *testing.T) {
		q := buildListingQuery(Query{MinAmount: 5000, MaxAmount: 100}, now)
		raw, _ := json.Marshal(q)

		assert.Contains(t, string(raw), `"gte":5000`)
		assert.NotContains(t, string(raw), `"lte":100`)
	})
}
