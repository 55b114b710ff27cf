package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-dev/huddle/internal/hub"
	"github.com/huddle-dev/huddle/internal/server"
)

func TestHealthz(t *testing.T) {
	h := hub.New(zerolog.Nop())
	srv := httptest.NewServer(server.NewRouter(h, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWsRejectsPlainHTTP(t *testing.T) {
	h := hub.New(zerolog.Nop())
	srv := httptest.NewServer(server.NewRouter(h, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
