package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/8.8.8.8/json/", r.URL.Path)
		_, _ = w.Write([]byte(`{"country_name":"Chile","city":"Santiago","latitude":-33.45,"longitude":-70.66}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.BaseURL = srv.URL

	loc, err := c.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.Equal(t, "Chile", loc.Country)
	require.Equal(t, "Santiago", loc.City)
	require.InDelta(t, -33.45, loc.Lat, 0.001)
}

func TestLookupUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient()
	c.BaseURL = srv.URL

	_, err := c.Lookup(context.Background(), "8.8.8.8")
	require.Error(t, err)
}
