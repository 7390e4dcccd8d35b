// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindVars_SubstitutesJSONLiterals(t *testing.T) {
	rendered, err := bindVars("UPDATE t CONTENT $body;", map[string]any{"body": map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE t CONTENT {"x":1};`, rendered)
}

func TestBindVars_NoVarsLeavesQueryUnchanged(t *testing.T) {
	rendered, err := bindVars("INFO FOR DB;", nil)
	require.NoError(t, err)
	assert.Equal(t, "INFO FOR DB;", rendered)
}

func newTestSurrealServer(t *testing.T, status string, result string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sql", r.URL.Path)
		assert.Equal(t, "ns1", r.Header.Get("NS"))
		assert.Equal(t, "db1", r.Header.Get("DB"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"status":"` + status + `","result":` + result + `}]`))
	}))
}

func TestSurrealBackend_EnsureCollectionSendsDefineStatements(t *testing.T) {
	srv := newTestSurrealServer(t, "OK", "null")
	defer srv.Close()

	b := NewSurrealBackend(srv.URL, "ns1", "db1", "", "")
	err := b.EnsureCollection(context.Background(), "chunks_rust", 768)
	require.NoError(t, err)
}

func TestSurrealBackend_QueryFailureIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"status":"ERR","detail":"syntax error"}]`))
	}))
	defer srv.Close()

	b := NewSurrealBackend(srv.URL, "ns1", "db1", "", "")
	err := b.EnsureCollection(context.Background(), "chunks_rust", 768)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestSurrealBackend_CollectionStatsParsesCount(t *testing.T) {
	srv := newTestSurrealServer(t, "OK", `[{"count":42}]`)
	defer srv.Close()

	b := NewSurrealBackend(srv.URL, "ns1", "db1", "", "")
	stats, err := b.CollectionStats(context.Background(), "chunks_rust")
	require.NoError(t, err)
	assert.EqualValues(t, 42, stats.PointCount)
	assert.Equal(t, "chunks_rust", stats.Name)
}

func TestSurrealBackend_ListCollectionsParsesTableNames(t *testing.T) {
	srv := newTestSurrealServer(t, "OK", `{"tables":{"chunks_rust":{},"docs":{}}}`)
	defer srv.Close()

	b := NewSurrealBackend(srv.URL, "ns1", "db1", "", "")
	names, err := b.ListCollections(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chunks_rust", "docs"}, names)
}

func TestSurrealBackend_UpsertEncodesPointAsContent(t *testing.T) {
	var receivedBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		receivedBody = string(body)
		_, _ = w.Write([]byte(`[{"status":"OK","result":null}]`))
	}))
	defer srv.Close()

	b := NewSurrealBackend(srv.URL, "ns1", "db1", "", "")
	err := b.Upsert(context.Background(), "chunks_rust", []Point{
		{ID: "abc-123", Vector: []float32{0.1, 0.2}, Payload: map[string]any{"file_path": "src/lib.rs"}},
	})
	require.NoError(t, err)
	assert.Contains(t, receivedBody, `"point_id":"abc-123"`)
	assert.Contains(t, receivedBody, `type::thing("chunks_rust", "abc-123")`)
}

func TestSurrealBackend_Close_IsNoop(t *testing.T) {
	b := NewSurrealBackend("http://localhost:8000", "ns1", "db1", "", "")
	assert.NoError(t, b.Close())
}
