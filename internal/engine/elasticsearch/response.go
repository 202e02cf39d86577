package elasticsearch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			// Key is a string for keyword fields and a number otherwise.
			Key      any   `json:"key"`
			DocCount int64 `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

type errorDetail struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string       `json:"_id"`
		Status int          `json:"status"`
		Error  *errorDetail `json:"error,omitempty"`
	} `json:"items"`
}

// failures lists the per-document errors of a partially failed bulk call.
func (r bulkResponse) failures() []string {
	var out []string
	for _, item := range r.Items {
		for _, result := range item {
			if result.Error != nil {
				out = append(out, fmt.Sprintf("id=%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason))
			}
		}
	}
	return out
}

// responseError turns an error response into an error naming the cluster's
// reason when the body carries one.
func responseError(op string, res *esapi.Response) error {
	var body struct {
		Error errorDetail `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, body.Error.Type, body.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, strings.TrimSpace(res.Status()))
}
