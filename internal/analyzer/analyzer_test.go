package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lcu-tools/lcudump/internal/params"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedDump lays out a small dump tree mixing both file layouts.
func seedDump(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Flat layout.
	writeFile(t, filepath.Join(dir, "GET", "lol-summoner", "v1", "current-summoner.meta.json"),
		`{"timestamp": "2026-08-26T10:00:00Z", "statusCode": 200, "durationMs": 12, "requestHeaders": {}}`)
	writeFile(t, filepath.Join(dir, "GET", "lol-summoner", "v1", "current-summoner.json"),
		`{"data": {"summonerId": 123}}`)
	writeFile(t, filepath.Join(dir, "GET", "lol-store", "v1", "wallet.meta.json"),
		`{"statusCode": 404, "durationMs": 3, "requestHeaders": {}}`)

	// Per-item layout.
	writeFile(t, filepath.Join(dir, "GET", "lol-chat", "v1", "settings", "meta.json"),
		`{"statusCode": 200, "durationMs": 5, "requestHeaders": {}}`)
	writeFile(t, filepath.Join(dir, "GET", "lol-chat", "v1", "settings", "response.json"),
		`{"data": {"enabled": true}}`)

	// Corrupt metadata.
	writeFile(t, filepath.Join(dir, "GET", "lol-login", "v1", "session.meta.json"), "not json")

	// Too shallow for either layout; ignored by classification.
	writeFile(t, filepath.Join(dir, "GET", "root.meta.json"), `{"statusCode": 500}`)

	return dir
}

func TestStatuses(t *testing.T) {
	dir := seedDump(t)
	got, err := Statuses(dir)
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	want := map[string]int{
		"200":     2,
		"404":     1,
		"500":     1,
		"invalid": 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestClassify(t *testing.T) {
	dir := seedDump(t)
	cls, err := Classify(dir)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	wantActive := []endpoint.Endpoint{
		{Method: "GET", Path: "/lol-chat/v1/settings"},
		{Method: "GET", Path: "/lol-summoner/v1/current-summoner"},
	}
	active := endpoint.Dedupe(cls.Active)
	endpoint.Sort(active)
	if !reflect.DeepEqual(active, wantActive) {
		t.Errorf("active = %v, want %v", active, wantActive)
	}

	wantNotFound := []endpoint.Endpoint{{Method: "GET", Path: "/lol-store/v1/wallet"}}
	if !reflect.DeepEqual(cls.NotFound, wantNotFound) {
		t.Errorf("notFound = %v, want %v", cls.NotFound, wantNotFound)
	}
}

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		want endpoint.Endpoint
		ok   bool
	}{
		{
			name: "flat layout",
			rel:  filepath.Join("GET", "lol-summoner", "v1", "current-summoner.meta.json"),
			want: endpoint.Endpoint{Method: "GET", Path: "/lol-summoner/v1/current-summoner"},
			ok:   true,
		},
		{
			name: "per-item layout",
			rel:  filepath.Join("POST", "lol-login", "v1", "session", "meta.json"),
			want: endpoint.Endpoint{Method: "POST", Path: "/lol-login/v1/session"},
			ok:   true,
		},
		{
			name: "too shallow",
			rel:  filepath.Join("GET", "leaf.meta.json"),
			ok:   false,
		},
		{
			name: "not a metadata file",
			rel:  filepath.Join("GET", "lol-chat", "v1", "settings.json"),
			ok:   false,
		},
	}
	root := string(filepath.Separator) + "dump"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reconstruct(root, filepath.Join(root, tt.rel))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteOutputs(t *testing.T) {
	dir := seedDump(t)
	writeFile(t, filepath.Join(dir, endpoint.IndexFile),
		`[{"method": "GET", "path": "/lol-summoner/v1/summoners/{summonerId}"}]`)

	statuses, pool, err := Summarize(dir)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if statuses["200"] != 2 {
		t.Errorf("unexpected statuses: %v", statuses)
	}
	if !reflect.DeepEqual(pool["summonerId"], []string{"123"}) {
		t.Errorf("unexpected pool: %v", pool)
	}

	cls, err := Classify(dir)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if err := WriteOutputs(dir, cls, pool, nil, 5, params.ModeZip); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}

	active, err := endpoint.ReadIndex(filepath.Join(dir, ActiveIndexFile))
	if err != nil {
		t.Fatalf("read active index: %v", err)
	}
	wantActive := []endpoint.Endpoint{
		{Method: "GET", Path: "/lol-chat/v1/settings"},
		{Method: "GET", Path: "/lol-summoner/v1/current-summoner"},
	}
	if !reflect.DeepEqual(active, wantActive) {
		t.Errorf("active index = %v, want %v", active, wantActive)
	}

	notFound, err := endpoint.ReadIndex(filepath.Join(dir, NotFoundFile))
	if err != nil {
		t.Fatalf("read not-found index: %v", err)
	}
	if len(notFound) != 1 || notFound[0].Path != "/lol-store/v1/wallet" {
		t.Errorf("not-found index = %v", notFound)
	}

	raw, err := os.ReadFile(filepath.Join(dir, AutoParamsFile))
	if err != nil {
		t.Fatalf("read auto params: %v", err)
	}
	var table map[string][]map[string]any
	if err := json.Unmarshal(raw, &table); err != nil {
		t.Fatal(err)
	}
	sets := table["/lol-summoner/v1/summoners/{summonerId}"]
	if len(sets) != 1 || sets[0]["summonerId"] != "123" {
		t.Errorf("auto params = %v", table)
	}
}

func TestWriteOutputsSkipsEmptyArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := WriteOutputs(dir, Classified{}, params.Pool{}, []endpoint.Endpoint{}, 5, params.ModeZip); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ActiveIndexFile)); err != nil {
		t.Error("active index must always be written")
	}
	if _, err := os.Stat(filepath.Join(dir, NotFoundFile)); !os.IsNotExist(err) {
		t.Error("empty not-found index must not be written")
	}
	if _, err := os.Stat(filepath.Join(dir, AutoParamsFile)); !os.IsNotExist(err) {
		t.Error("empty auto-param table must not be written")
	}
}
