package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "http://localhost:10000/livez", endpoint("10000", "/livez"))
	assert.Equal(t, "http://localhost:8080/readyz", endpoint("8080", "readyz"))
}

func TestCheck(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/livez" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	assert.NoError(t, check(context.Background(), srv.Client(), srv.URL+"/livez"))

	err := check(context.Background(), srv.Client(), srv.URL+"/readyz")
	assert.ErrorContains(t, err, "503")
}

func TestCheck_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, check(context.Background(), srv.Client(), url+"/livez"))
}
