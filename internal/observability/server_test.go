package observability

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerExposesMetrics(t *testing.T) {
	IndexedEntries.Set(42)
	QueriesTotal.WithLabelValues("resolve").Inc()

	srv := NewServer("127.0.0.1:0")
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "rubyindex_entries 42")
	assert.Contains(t, string(body), `rubyindex_queries_total{kind="resolve"}`)
}

func TestServerRejectsBusyAddress(t *testing.T) {
	first := NewServer("127.0.0.1:0")
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	second := NewServer(first.Addr())
	assert.Error(t, second.Start(context.Background()))
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(":0").Stop(context.Background()))
}
