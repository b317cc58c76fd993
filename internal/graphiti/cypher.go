package graphiti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ErrWriteQuery indicates a Cypher query containing write clauses was
// passed to the read-only interface.
var ErrWriteQuery = errors.New("write operations are not allowed")

// writeClause matches Cypher write keywords at word boundaries, case
// insensitively. String literals are not parsed; a keyword inside a quoted
// string is a false positive we accept for a read-only surface.
var writeClause = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET|DELETE|DETACH|REMOVE|DROP|LOAD\s+CSV|FOREACH)\b`)

// Schema returns the graph schema as reported by
// db.schema.visualization(), serialized to JSON.
func (s *Store) Schema(ctx context.Context) (string, error) {
	if err := s.init(ctx); err != nil {
		return "", err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx) //nolint:errcheck

	result, err := session.Run(ctx, "CALL db.schema.visualization()", nil)
	if err != nil {
		return "", fmt.Errorf("reading graph schema: %w", err)
	}

	rows, err := collectRows(ctx, result)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	return string(data), nil
}

// ReadQuery runs an arbitrary read-only Cypher query and returns the rows
// as JSON. Queries containing write clauses are rejected, and any property
// whose name contains "embedding" is stripped from the results to keep
// vector payloads out of model context.
func (s *Store) ReadQuery(ctx context.Context, query string, params map[string]any) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query must not be empty")
	}
	if match := writeClause.FindString(query); match != "" {
		return "", fmt.Errorf("%w: query contains %q", ErrWriteQuery, strings.ToUpper(match))
	}
	if err := s.init(ctx); err != nil {
		return "", err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx) //nolint:errcheck

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return "", fmt.Errorf("running cypher query: %w", err)
	}

	rows, err := collectRows(ctx, result)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding query results: %w", err)
	}
	return string(data), nil
}

func collectRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]any, error) {
	rows := []map[string]any{}
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = jsonValue(record.Values[i])
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading query results: %w", err)
	}
	return rows, nil
}

// jsonValue converts a Neo4j record value into a JSON-friendly value.
// Graph elements flatten to their properties (embedding properties
// removed), temporal types render as strings.
func jsonValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return map[string]any{
			"labels":     val.Labels,
			"properties": cleanProperties(val.Props),
		}
	case dbtype.Relationship:
		return map[string]any{
			"type":       val.Type,
			"properties": cleanProperties(val.Props),
		}
	case dbtype.Path:
		nodes := make([]any, len(val.Nodes))
		for i, n := range val.Nodes {
			nodes[i] = jsonValue(n)
		}
		rels := make([]any, len(val.Relationships))
		for i, r := range val.Relationships {
			rels[i] = jsonValue(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case dbtype.Date:
		return val.Time().Format("2006-01-02")
	case dbtype.LocalDateTime:
		return val.Time().Format(time.RFC3339Nano)
	case dbtype.Duration:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonValue(item)
		}
		return out
	case map[string]any:
		return cleanProperties(val)
	default:
		return v
	}
}

// cleanProperties converts property maps, dropping any key that contains
// "embedding".
func cleanProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if strings.Contains(strings.ToLower(k), "embedding") {
			continue
		}
		out[k] = jsonValue(v)
	}
	return out
}
