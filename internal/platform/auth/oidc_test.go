package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOIDCProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":   "http://" + r.Host,
			"jwks_uri": "http://" + r.Host + "/keys",
		})
	}))
	defer srv.Close()

	provider, err := NewOIDCProvider(srv.URL + "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.JWKSURI != srv.URL+"/keys" {
		t.Errorf("unexpected jwks_uri %s", provider.JWKSURI)
	}
}

func TestNewOIDCProvider_MissingJWKS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"issuer": "x"})
	}))
	defer srv.Close()

	if _, err := NewOIDCProvider(srv.URL); err == nil {
		t.Error("expected error when jwks_uri is missing")
	}
}

func TestNewOIDCProvider_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewOIDCProvider(srv.URL); err == nil {
		t.Error("expected error for non-200 discovery response")
	}
}
