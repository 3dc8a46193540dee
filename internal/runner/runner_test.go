package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/internal/planner"
)

func testItem(dir, method, rendered string) planner.Item {
	leaf := filepath.Base(rendered)
	return planner.Item{
		Method:       method,
		RenderedPath: rendered,
		ResponsePath: filepath.Join(dir, method, leaf+".json"),
		MetaPath:     filepath.Join(dir, method, leaf+".meta.json"),
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal %s: %v", path, err)
	}
}

func TestRunTally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"value": 1}`))
		case "/missing":
			http.NotFound(w, r)
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("not json at all ["))
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	plan := planner.Plan{Items: []planner.Item{
		testItem(dir, "GET", "/ok"),
		testItem(dir, "GET", "/missing"),
		testItem(dir, "GET", "/plain"),
	}}

	res := Run(context.Background(), plan, srv.Client, Options{
		BaseURL:     srv.URL,
		Timeout:     2 * time.Second,
		Attempts:    1,
		Concurrency: 4,
		UserAgent:   "lcudump-test",
	}, NewCancel(), logger.Nop())

	if res.Total != res.OK+res.Failed+res.Skipped {
		t.Errorf("tally invariant broken: %+v", res)
	}
	// A received response is a success regardless of status code.
	if res.Total != 3 || res.OK != 3 || res.Failed != 0 || res.Skipped != 0 {
		t.Errorf("unexpected tally: %+v", res)
	}
	if res.BodyBytes == 0 {
		t.Error("expected fetched byte count")
	}

	var body map[string]any
	readJSON(t, filepath.Join(dir, "GET", "ok.json"), &body)
	data, ok := body["data"].(map[string]any)
	if !ok || data["value"] != float64(1) {
		t.Errorf("structured body mismatch: %v", body)
	}

	readJSON(t, filepath.Join(dir, "GET", "plain.json"), &body)
	if body["text"] != "not json at all [" || body["contentType"] != "text/plain" {
		t.Errorf("text body mismatch: %v", body)
	}

	var meta Meta
	readJSON(t, filepath.Join(dir, "GET", "missing.meta.json"), &meta)
	if meta.StatusCode != 404 {
		t.Errorf("meta.StatusCode = %d, want 404", meta.StatusCode)
	}
	if meta.RequestHeaders["Accept"] != "application/json" {
		t.Errorf("expected Accept header recorded, got %v", meta.RequestHeaders)
	}
	if meta.RequestHeaders["User-Agent"] != "lcudump-test" {
		t.Errorf("expected User-Agent header recorded, got %v", meta.RequestHeaders)
	}
	if _, ok := meta.RequestHeaders["Authorization"]; ok {
		t.Error("credential header must never be recorded")
	}
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestRunRetriesThenFails(t *testing.T) {
	transport := &countingTransport{}
	factory := func() *http.Client {
		return &http.Client{Transport: transport}
	}

	dir := t.TempDir()
	plan := planner.Plan{Items: []planner.Item{testItem(dir, "GET", "/gone")}}

	res := Run(context.Background(), plan, factory, Options{
		BaseURL:     "http://127.0.0.1:1",
		Attempts:    2,
		Concurrency: 1,
	}, NewCancel(), logger.Nop())

	if res.Failed != 1 || res.OK != 0 {
		t.Errorf("unexpected tally: %+v", res)
	}
	if got := transport.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "GET", "gone.json")); !os.IsNotExist(err) {
		t.Error("no response file expected for a transport failure")
	}
	var meta Meta
	readJSON(t, filepath.Join(dir, "GET", "gone.meta.json"), &meta)
	if meta.StatusCode != 0 {
		t.Errorf("meta.StatusCode = %d, want 0", meta.StatusCode)
	}
	if meta.Errors == "" {
		t.Error("expected the transport error recorded in metadata")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	plan := planner.Plan{Items: []planner.Item{
		testItem(dir, "GET", "/a"),
		testItem(dir, "GET", "/b"),
	}}

	cancel := NewCancel()
	cancel.Signal()

	res := Run(context.Background(), plan, func() *http.Client { return http.DefaultClient }, Options{
		BaseURL:     "http://127.0.0.1:1",
		Attempts:    1,
		Concurrency: 2,
	}, cancel, logger.Nop())

	if res.Skipped != 2 || res.OK != 0 || res.Failed != 0 {
		t.Errorf("unexpected tally: %+v", res)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("skipped items must write nothing, found %v", entries)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	res := Run(context.Background(), planner.Plan{}, func() *http.Client { return http.DefaultClient },
		Options{Concurrency: 4}, NewCancel(), logger.Nop())
	if res != (Result{}) {
		t.Errorf("expected zero result, got %+v", res)
	}
}

func TestRunWriteFailureDowngrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	// A regular file where a directory is needed makes both writes fail.
	blocker := filepath.Join(dir, "GET")
	if err := os.WriteFile(blocker, []byte("in the way"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan := planner.Plan{Items: []planner.Item{testItem(dir, "GET", "/ok")}}
	res := Run(context.Background(), plan, srv.Client, Options{
		BaseURL:     srv.URL,
		Attempts:    1,
		Concurrency: 1,
	}, NewCancel(), logger.Nop())

	if res.Failed != 1 || res.OK != 0 {
		t.Errorf("write failure must downgrade the item: %+v", res)
	}
}

func TestSleepJitterBounds(t *testing.T) {
	start := time.Now()
	sleepJitter(0, 0)
	sleepJitter(10*time.Millisecond, 5*time.Millisecond) // max < min is a no-op
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("degenerate jitter ranges must not sleep, took %v", elapsed)
	}
}
