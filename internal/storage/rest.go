package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/TheIdeem/supabase-mcp-server/internal/models"
	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

type RESTConfig struct {
	URL        string
	ServiceKey string
	Schema     string
}

// RESTStorage reads tables through the PostgREST API of a Supabase project.
type RESTStorage struct {
	client *postgrest.Client
	logger *zap.Logger
}

func NewRESTStorage(config RESTConfig, logger *zap.Logger) (*RESTStorage, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Supabase URL %q: %w", config.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Supabase URL %q: scheme and host are required", config.URL)
	}
	if config.ServiceKey == "" {
		return nil, fmt.Errorf("service role key is empty")
	}

	restURL := strings.TrimRight(config.URL, "/") + "/rest/v1"
	client := postgrest.NewClient(restURL, config.Schema, map[string]string{
		"apikey":        config.ServiceKey,
		"Authorization": "Bearer " + config.ServiceKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("error creating PostgREST client: %w", client.ClientError)
	}

	logger.Debug("PostgREST client ready", zap.String("url", restURL), zap.String("schema", config.Schema))
	return &RESTStorage{client: client, logger: logger}, nil
}

// Probe issues select=id&limit=1 against the table.
// postgrest-go does not take a context, so ctx is only checked up front.
func (s *RESTStorage) Probe(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, _, err := s.client.From(table).Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		return fmt.Errorf("probe %s: %w", table, err)
	}

	var rows []models.RowRef
	if err := decodeRows(body, &rows); err != nil {
		return fmt.Errorf("probe %s: %w", table, err)
	}
	s.logger.Debug("probe succeeded", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

func (s *RESTStorage) Sample(ctx context.Context, table string) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := s.client.From(table).Select("*", "", false).Limit(1, "").Execute()
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}

	var rows []map[string]json.RawMessage
	if err := decodeRows(body, &rows); err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	if len(rows) == 0 {
		return &Sample{Empty: true}, nil
	}

	columns := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		columns = append(columns, name)
	}
	return newSample(columns), nil
}

func (s *RESTStorage) Close() error {
	return nil
}

// decodeRows decodes a PostgREST result array into v. Error statuses never
// reach it: postgrest-go turns them into errors in Execute.
func decodeRows(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("error decoding rows: %w", err)
	}
	return nil
}
