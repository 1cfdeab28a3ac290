package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServeAndStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
	srv := NewServer(0, h, Timeouts{}, nil)
	assert.Equal(t, 15*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.srv.IdleTimeout)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-done, "graceful stop is not an error")
}

func TestServer_CustomTimeouts(t *testing.T) {
	srv := NewServer(5000, http.NotFoundHandler(), Timeouts{Write: 3 * time.Minute}, nil)
	assert.Equal(t, ":5000", srv.Addr())
	assert.Equal(t, 3*time.Minute, srv.srv.WriteTimeout)
	assert.Equal(t, 15*time.Second, srv.srv.ReadTimeout)
}
