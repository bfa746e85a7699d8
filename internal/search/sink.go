// Package search writes Fill documents to Elasticsearch through the bulk API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// Document is one bulk index action.
type Document struct {
	Index string
	ID    string
	Body  any
}

// Config configures the Elasticsearch client.
type Config struct {
	URLs      []string
	Username  string
	Password  string
	Transport http.RoundTripper
}

// BulkSink writes documents with the _bulk API.
type BulkSink struct {
	client *elasticsearch.Client
	logger *zap.Logger
}

func NewBulkSink(cfg Config, logger *zap.Logger) (*BulkSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkSink{client: client, logger: logger}, nil
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string         `json:"_id"`
	Status int            `json:"status"`
	Error  *bulkItemError `json:"error,omitempty"`
}

type bulkItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Index writes docs in one bulk request. When the request succeeds but items fail, the error
// names the first failing item.
func (s *BulkSink) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	body, err := encodeBulk(docs)
	if err != nil {
		return err
	}

	res, err := s.client.Bulk(bytes.NewReader(body), s.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	return s.checkResponse(res)
}

func (s *BulkSink) checkResponse(res *esapi.Response) error {
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read bulk response: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("bulk request: %s: %s", res.Status(), bytes.TrimSpace(raw))
	}

	var parsed bulkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	return firstItemError(parsed.Items)
}

func firstItemError(items []map[string]bulkItemResult) error {
	failed := 0
	var first error
	for _, item := range items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == nil {
				first = fmt.Errorf("first failing item %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
		}
	}
	if first == nil {
		return fmt.Errorf("bulk response reported errors without a failing item")
	}
	if failed > 1 {
		return fmt.Errorf("%w (%d items failed)", first, failed)
	}
	return first
}

func encodeBulk(docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: doc.Index, ID: doc.ID}}); err != nil {
			return nil, fmt.Errorf("encode bulk action %s: %w", doc.ID, err)
		}
		if err := enc.Encode(doc.Body); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}
	return buf.Bytes(), nil
}
