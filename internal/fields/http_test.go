package fields

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Fields(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		assert.Equal(t, "/api/v2/dealFields", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-token"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprintf(w, `{"success":true,"data":[{"field_code":"%s","field_name":"Priority","field_type":"enum","options":[{"id":1,"label":"High"}]}],"additional_data":{"next_cursor":"page2"}}`, hashA)

			return
		}

		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		fmt.Fprint(w, `{"success":true,"data":[{"field_code":"title","field_name":"Title","field_type":"varchar"}],"additional_data":{"next_cursor":null}}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", "secret", time.Second)

	defs, err := p.Fields(context.Background(), "deal")
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, defs, 2)
	assert.Equal(t, hashA, defs[0].Key)
	assert.Equal(t, []Option{{ID: 1, Label: "High"}}, defs[0].Options)
	assert.Equal(t, "title", defs[1].Key)
}

func TestHTTPProvider_Errors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := NewHTTPProvider(srv.URL, "bad", time.Second).Fields(context.Background(), "deal")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPProvider(srv.URL, "", time.Second).Fields(context.Background(), "person")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"success":false,"error":"quota exceeded"}`)
		}))
		defer srv.Close()

		_, err := NewHTTPProvider(srv.URL, "", time.Second).Fields(context.Background(), "deal")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewHTTPProvider("http://127.0.0.1:1", "", time.Second).Fields(ctx, "deal")
		assert.Error(t, err)
	})
}
