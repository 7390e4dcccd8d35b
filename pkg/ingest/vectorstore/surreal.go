// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SurrealBackend is the local Backend, a plain HTTP+JSON client against
// SurrealDB's documented "/sql" HTTP RPC endpoint. No Go SDK for SurrealDB
// appears anywhere in the reference pack; the query shapes themselves (CREATE
// ... CONTENT, UPDATE ... SET, vector::similarity::cosine) are grounded on
// madeindigio-remembrances-mcp's SurrealDB storage layer, translated from
// that repo's Go-SDK calls to raw SurrealQL strings sent over /sql.
type SurrealBackend struct {
	httpClient *http.Client
	baseURL    string
	ns         string
	db         string
	user       string
	pass       string
}

// NewSurrealBackend constructs a client targeting baseURL (e.g.
// "http://localhost:8000"), scoped to the given namespace and database.
func NewSurrealBackend(baseURL, ns, db, user, pass string) *SurrealBackend {
	return &SurrealBackend{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		ns:         ns,
		db:         db,
		user:       user,
		pass:       pass,
	}
}

type surrealResult struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Detail string          `json:"detail"`
}

// sql executes one or more SurrealQL statements against /sql, substituting
// $-prefixed bind variables via SurrealDB's query-parameter header
// convention is not used here; instead bindings are inlined as JSON
// literals, matching the "CONTENT $param"-style calls in the grounding
// source but resolved client-side since the HTTP /sql endpoint (unlike the
// SDK's query()) takes only a literal query string.
func (s *SurrealBackend) sql(ctx context.Context, query string, vars map[string]any) ([]surrealResult, error) {
	rendered, err := bindVars(query, vars)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sql", bytes.NewBufferString(rendered))
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("NS", s.ns)
	req.Header.Set("DB", s.db)
	if s.user != "" {
		req.SetBasicAuth(s.user, s.pass)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("vectorstore/surreal: status %d: %s", resp.StatusCode, string(body))
	}

	var results []surrealResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: decode response: %w", err)
	}
	for _, r := range results {
		if r.Status != "OK" {
			return nil, fmt.Errorf("vectorstore/surreal: query failed: %s", r.Detail)
		}
	}
	return results, nil
}

// bindVars renders $name placeholders as JSON literals. SurrealDB's /sql
// endpoint accepts only a literal query (the SDK-level bind-variable
// protocol needs a persistent WebSocket connection), so values are escaped
// and substituted textually here.
func bindVars(query string, vars map[string]any) (string, error) {
	out := query
	for name, val := range vars {
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("vectorstore/surreal: encode bind var %q: %w", name, err)
		}
		out = strings.ReplaceAll(out, "$"+name, string(encoded))
	}
	return out, nil
}

func (s *SurrealBackend) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	stmt := fmt.Sprintf(
		"DEFINE TABLE IF NOT EXISTS %s SCHEMALESS; DEFINE INDEX IF NOT EXISTS %s_vec_idx ON %s FIELDS vector MTREE DIMENSION %d DIST COSINE;",
		collection, collection, collection, dimension,
	)
	_, err := s.sql(ctx, stmt, nil)
	if err != nil {
		return fmt.Errorf("vectorstore/surreal: ensure collection %s: %w", collection, err)
	}
	return nil
}

func (s *SurrealBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload)+2)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["point_id"] = p.ID
		payload["vector"] = p.Vector

		content, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vectorstore/surreal: encode point %s: %w", p.ID, err)
		}
		stmt := fmt.Sprintf("UPDATE type::thing(%q, %q) CONTENT %s;", collection, p.ID, string(content))
		if _, err := s.sql(ctx, stmt, nil); err != nil {
			return fmt.Errorf("vectorstore/surreal: upsert point %s into %s: %w", p.ID, collection, err)
		}
	}
	return nil
}

func (s *SurrealBackend) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: encode query vector: %w", err)
	}

	where := ""
	if len(filter) > 0 {
		clauses := make([]string, 0, len(filter))
		for field, value := range filter {
			v, _ := json.Marshal(value)
			clauses = append(clauses, fmt.Sprintf("%s = %s", field, string(v)))
		}
		where = "WHERE " + strings.Join(clauses, " AND ") + " AND"
	} else {
		where = "WHERE"
	}

	stmt := fmt.Sprintf(
		"SELECT *, vector::similarity::cosine(vector, %s) AS similarity FROM %s %s vector != NONE ORDER BY similarity DESC LIMIT %d;",
		string(vecJSON), collection, where, k,
	)

	results, err := s.sql(ctx, stmt, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: search %s: %w", collection, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(results[0].Result, &rows); err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: decode search rows: %w", err)
	}

	out := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		id, _ := row["point_id"].(string)
		score, _ := row["similarity"].(float64)
		payload := make(map[string]any)
		for k, v := range row {
			if k == "point_id" || k == "vector" || k == "similarity" || k == "id" {
				continue
			}
			payload[k] = v
		}
		out = append(out, SearchResult{ID: id, Score: score, Payload: payload})
	}
	return out, nil
}

func (s *SurrealBackend) CollectionStats(ctx context.Context, collection string) (CollectionStats, error) {
	stmt := fmt.Sprintf("SELECT count() FROM %s GROUP ALL;", collection)
	results, err := s.sql(ctx, stmt, nil)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("vectorstore/surreal: collection stats %s: %w", collection, err)
	}
	stats := CollectionStats{Name: collection}
	if len(results) > 0 {
		var rows []map[string]any
		if err := json.Unmarshal(results[0].Result, &rows); err == nil && len(rows) > 0 {
			if count, ok := rows[0]["count"].(float64); ok {
				stats.PointCount = uint64(count)
			}
		}
	}
	return stats, nil
}

func (s *SurrealBackend) ListCollections(ctx context.Context) ([]string, error) {
	results, err := s.sql(ctx, "INFO FOR DB;", nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: list collections: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	var info struct {
		Tables map[string]any `json:"tables"`
	}
	if err := json.Unmarshal(results[0].Result, &info); err != nil {
		return nil, fmt.Errorf("vectorstore/surreal: decode db info: %w", err)
	}
	names := make([]string, 0, len(info.Tables))
	for name := range info.Tables {
		names = append(names, name)
	}
	return names, nil
}

func (s *SurrealBackend) Close() error {
	return nil
}
