package runlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(store Store) *httptest.Server {
	s := NewServer(store, "", zerolog.Nop())
	return httptest.NewServer(s.Handler())
}

func TestServer_RecordAndSummary(t *testing.T) {
	store := NewMemory(0)
	srv := newTestServer(store)
	defer srv.Close()

	body := `{"template":"summarize","model":"gpt-4","latency_ms":120,"prompt_tokens":8,"completion_tokens":3,"ok":true}`
	resp, err := http.Post(srv.URL+"/records", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/summary?group_by=template")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Summaries []Summary `json:"summaries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Summaries, 1)
	assert.Equal(t, "summarize", out.Summaries[0].Key)
	assert.Equal(t, int64(1), out.Summaries[0].Invocations)
}

func TestServer_Record_RequiresTemplate(t *testing.T) {
	srv := newTestServer(NewMemory(0))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/records", "application/json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Record_RejectsBadJSON(t *testing.T) {
	srv := newTestServer(NewMemory(0))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/records", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(NewMemory(0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Index(t *testing.T) {
	srv := newTestServer(NewMemory(0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestServer_Summary_LimitParam(t *testing.T) {
	store := NewMemory(0)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Record(context.Background(), Record{Template: "t" + string(rune('a'+i)), OK: true}))
	}
	srv := newTestServer(store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/summary?group_by=template&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Summaries []Summary `json:"summaries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Summaries, 2)
}
