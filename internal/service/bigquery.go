package service

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// BigQueryService reads warehouse metadata for the KPI catalog. Queries are
// executed against Postgres; BigQuery only reports which columns exist.
type BigQueryService struct {
	client    *bigquery.Client
	projectID string
}

// NewBigQueryService creates a new BigQuery client
func NewBigQueryService(ctx context.Context, projectID, credentialsFile string) (*BigQueryService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}

	return &BigQueryService{
		client:    client,
		projectID: projectID,
	}, nil
}

// Close releases the BigQuery client
func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// TestConnection verifies BigQuery connectivity
func (s *BigQueryService) TestConnection(ctx context.Context) error {
	q := s.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// TableColumns returns the lowercased top-level column names of a table, in
// schema order. Nested RECORD fields are skipped; templates address flat columns only.
func (s *BigQueryService) TableColumns(ctx context.Context, datasetID, tableID string) ([]string, error) {
	meta, err := s.client.Dataset(datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table %q.%q: %w", datasetID, tableID, err)
	}
	cols := SchemaColumns(meta.Schema)
	log.Debug().
		Str("project", s.projectID).
		Str("dataset", datasetID).
		Str("table", tableID).
		Int("columns", len(cols)).
		Msg("fetched warehouse columns")
	return cols, nil
}

// SchemaColumns flattens a schema into column names usable by the SQL templates
func SchemaColumns(schema bigquery.Schema) []string {
	cols := make([]string, 0, len(schema))
	for _, f := range schema {
		if f == nil || f.Type == bigquery.RecordFieldType {
			continue
		}
		cols = append(cols, strings.ToLower(f.Name))
	}
	return cols
}
