package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

const openAPIV3Doc = `{
  "openapi": "3.0.0",
  "info": {"title": "LCU", "version": "1.0"},
  "paths": {
    "/lol-summoner/v1/current-summoner": {"get": {"responses": {}}},
    "/lol-chat/v1/conversations/{id}": {
      "get": {"responses": {}},
      "delete": {"responses": {}}
    }
  }
}`

const swaggerV2Doc = `{
  "swagger": "2.0",
  "info": {"title": "LCU", "version": "1.0"},
  "paths": {
    "/lol-login/v1/session": {"get": {}, "post": {}}
  }
}`

func TestDiscoverOpenAPIV3(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != OpenAPIV3Path {
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(openAPIV3Doc))
	}))
	defer srv.Close()

	got, err := New(srv.Client(), srv.URL, logger.Nop()).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []endpoint.Endpoint{
		{Method: "DELETE", Path: "/lol-chat/v1/conversations/{id}"},
		{Method: "GET", Path: "/lol-chat/v1/conversations/{id}"},
		{Method: "GET", Path: "/lol-summoner/v1/current-summoner"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscoverFallsBackToSwaggerV2(t *testing.T) {
	var helpHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case OpenAPIV3Path:
			http.NotFound(w, r)
		case SwaggerV2Path:
			w.Write([]byte(swaggerV2Doc))
		case HelpPath:
			helpHits.Add(1)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := New(srv.Client(), srv.URL, logger.Nop()).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []endpoint.Endpoint{
		{Method: "GET", Path: "/lol-login/v1/session"},
		{Method: "POST", Path: "/lol-login/v1/session"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if helpHits.Load() != 0 {
		t.Error("help fallback must not fire once an earlier source succeeds")
	}
}

func TestDiscoverFallsBackToHelp(t *testing.T) {
	help := `Available endpoints:
GET /lol-summoner/v1/current-summoner
POST /lol-login/v1/session
GET /lol-summoner/v1/current-summoner
some prose that mentions no endpoint
PATCH /lol-settings/v2/account/{category}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HelpPath {
			w.Write([]byte(help))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	got, err := New(srv.Client(), srv.URL, logger.Nop()).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []endpoint.Endpoint{
		{Method: "GET", Path: "/lol-summoner/v1/current-summoner"},
		{Method: "PATCH", Path: "/lol-settings/v2/account/{category}"},
		{Method: "POST", Path: "/lol-login/v1/session"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscoverAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.Client(), srv.URL, logger.Nop()).Discover(context.Background())
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	want := []string{OpenAPIV3Path, SwaggerV2Path, HelpPath}
	if !reflect.DeepEqual(derr.Attempted, want) {
		t.Errorf("Attempted = %v, want %v", derr.Attempted, want)
	}
}

func TestDiscoverHelpWithNoMatchesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HelpPath {
			w.Write([]byte("nothing useful here"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := New(srv.Client(), srv.URL, logger.Nop()).Discover(context.Background()); err == nil {
		t.Fatal("expected error for help output without endpoints")
	}
}
