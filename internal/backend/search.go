package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// CustomerIndex is the optional Elasticsearch-backed customer search. When
// the client is nil every call reports unavailable and the caller stays on
// the SQL path.
type CustomerIndex struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewCustomerIndex(es *elasticsearch.Client, index string, log logger.Logger) *CustomerIndex {
	return &CustomerIndex{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "customer-index"}),
	}
}

func (s *CustomerIndex) Available() bool {
	return s != nil && s.es != nil
}

// Search runs a fuzzy match-phrase-prefix query scoped to the user.
func (s *CustomerIndex) Search(ctx context.Context, userID, query string, limit int) ([]models.Customer, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: search index not configured", ErrQueryFailed)
	}

	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"user_id": userID}},
				},
				"must": []map[string]interface{}{
					{"match_phrase_prefix": map[string]interface{}{"name": query}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("%w: encode search query: %v", ErrQueryFailed, err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", ErrQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search status %s", ErrQueryFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Customer `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrQueryFailed, err)
	}

	out := make([]models.Customer, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
