// Package search runs scholarship listing queries against Elasticsearch.
// The index is maintained by a separate ingestion job; this package only
// reads it.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/common/metrics"
	"scholarswipe/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query is one listing search. Zero values mean "no filter".
type Query struct {
	Text      string
	Tags      []string
	MinAmount float64
	MaxAmount float64
	From      int
	Size      int
}

// Result is one page of matching listings.
type Result struct {
	Scholarships []models.Scholarship
	TotalHits    int64
	Took         int64
}

type Service struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	maxPage  int
	logger   logger.Logger
	now      func() time.Time
}

func NewService(client *elasticsearch.Client, esCfg config.ElasticsearchConfig, searchCfg config.SearchConfig, log logger.Logger) *Service {
	pageSize := searchCfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPage := searchCfg.MaxPageSize
	if maxPage <= 0 {
		maxPage = maxPageSize
	}
	index := esCfg.Index
	if index == "" {
		index = "scholarships"
	}
	return &Service{
		client:   client,
		index:    index,
		pageSize: pageSize,
		maxPage:  maxPage,
		logger:   log.WithFields(map[string]interface{}{"component": "search"}),
		now:      time.Now,
	}
}

// Search executes the query, restricted to active listings whose deadline
// has not passed.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	size := q.Size
	if size < 1 {
		size = s.pageSize
	}
	if size > s.maxPage {
		size = s.maxPage
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	body, _ := json.Marshal(buildListingQuery(q, s.now()))

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}

	start := time.Now()
	res, err := req.Do(ctx, s.client)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError()
		}
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("search status: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, errors.NewSearchQueryFailedError(err)
	}

	scholarships := make([]models.Scholarship, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		scholarships = append(scholarships, hit.Source)
	}

	metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("search executed", map[string]interface{}{
		"text":      q.Text,
		"totalHits": parsed.Hits.Total.Value,
		"returned":  len(scholarships),
	})

	return &Result{
		Scholarships: scholarships,
		TotalHits:    parsed.Hits.Total.Value,
		Took:         time.Since(start).Milliseconds(),
	}, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.Scholarship `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildListingQuery assembles the bool query: text match as must, tags and
// amount as filters, deadline and is_active always applied.
func buildListingQuery(q Query, now time.Time) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if q.Text != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^3", "description^2", "organization", "categories"},
				"type":   "best_fields",
			},
		})
	}
	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if len(q.Tags) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"categories": q.Tags},
		})
	}

	amountRange := map[string]interface{}{}
	if q.MinAmount > 0 {
		amountRange["gte"] = q.MinAmount
	}
	if q.MaxAmount > 0 && q.MaxAmount >= q.MinAmount {
		amountRange["lte"] = q.MaxAmount
	}
	if len(amountRange) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"amount": amountRange},
		})
	}

	filterClauses = append(filterClauses,
		map[string]interface{}{
			"range": map[string]interface{}{
				"deadline": map[string]interface{}{"gt": now.Format(time.RFC3339)},
			},
		},
		map[string]interface{}{
			"term": map[string]interface{}{"is_active": true},
		},
	)

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
		"sort": []map[string]interface{}{
			{"_score": "desc"},
			{"deadline": "asc"},
		},
	}
}
