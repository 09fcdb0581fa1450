package httpsrv

import (
	"context"
	"io/ioutil"
	"net/http"
	"testing"
	"time"

	"github.com/JWilliamson45/chord/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServeMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	srv := New(&http.Server{Addr: "127.0.0.1:0", Handler: mux}, zap.NewNop(), time.Second)
	require.NoError(t, srv.Start())

	telemetry.RingNodes.Set(3)
	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "chord_ring_nodes 3")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.CloseWithContext(ctx))

	_, err = http.Get("http://" + srv.Addr() + "/metrics")
	assert.Error(t, err)
}

func TestStartBadAddr(t *testing.T) {
	srv := New(&http.Server{Addr: "256.0.0.1:bad"}, zap.NewNop(), time.Second)
	assert.Error(t, srv.Start())
}
