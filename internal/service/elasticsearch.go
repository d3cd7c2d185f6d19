package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ESConfig holds the connection settings of the query log cluster
type ESConfig struct {
	Addresses   []string
	Username    string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
}

// QueryLogIndex stores one document per pipeline run in an Elasticsearch index
type QueryLogIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewQueryLogIndex creates an ES client using go-elasticsearch/v8
func NewQueryLogIndex(cfg ESConfig) (*QueryLogIndex, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("query log index name is required")
	}
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &QueryLogIndex{client: client, index: cfg.Index}, nil
}

// Index returns the name of the target index
func (s *QueryLogIndex) Index() string { return s.index }

// TestConnection pings the cluster
func (s *QueryLogIndex) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// LogQuery indexes ev under its run id, so retries overwrite instead of duplicating
func (s *QueryLogIndex) LogQuery(ctx context.Context, ev analytics.QueryEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal query event: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		s.client.Index.WithContext(ctx),
	}
	if ev.RunID != "" {
		opts = append(opts, s.client.Index.WithDocumentID(ev.RunID))
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("index query event: %w", err)
	}
	defer res.Body.Close()
	if _, err := decodeBody(res.Body, res.Status()); err != nil {
		return err
	}
	return nil
}

// RecentFailures returns the latest failed runs, newest first
func (s *QueryLogIndex) RecentFailures(ctx context.Context, size int) ([]analytics.QueryEvent, error) {
	if size <= 0 {
		size = 20
	}
	body, err := json.Marshal(map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"term": map[string]interface{}{"success": false}},
		"sort":  []interface{}{map[string]interface{}{"@timestamp": map[string]string{"order": "desc"}}},
	})
	if err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source analytics.QueryEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if res.IsError() {
		_, err := decodeBody(res.Body, res.Status())
		return nil, err
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	events := make([]analytics.QueryEvent, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		events = append(events, h.Source)
	}
	return events, nil
}

func decodeBody(r io.Reader, status string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}
