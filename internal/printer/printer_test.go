package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lcu-tools/lcudump/internal/runner"
)

func capture() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := New()
	p.SetOutput(&buf)
	return p, &buf
}

func TestTableAlignment(t *testing.T) {
	p, buf := capture()
	p.Table([]string{"METHOD", "PATH"}, [][]string{
		{"GET", "/lol-summoner/v1/current-summoner"},
		{"DELETE", "/x"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "METHOD  ") {
		t.Errorf("header row = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "------") {
		t.Errorf("separator row = %q", lines[1])
	}
	// The method column pads to the widest cell so paths start aligned.
	if strings.Index(lines[2], "/lol-summoner") != strings.Index(lines[3], "/x") {
		t.Errorf("columns not aligned:\n%q\n%q", lines[2], lines[3])
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		res  runner.Result
		want []string
	}{
		{
			name: "all ok",
			res:  runner.Result{Total: 2, OK: 2, BodyBytes: 1024},
			want: []string{"total=2", "ok=2", "failed=0", "1.0 kB"},
		},
		{
			name: "partial",
			res:  runner.Result{Total: 3, OK: 1, Failed: 1, Skipped: 1},
			want: []string{"total=3", "ok=1", "failed=1", "skipped=1"},
		},
		{
			name: "total failure",
			res:  runner.Result{Total: 2, Failed: 2},
			want: []string{"ok=0", "failed=2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := capture()
			p.Summary(tt.res, "out")
			got := buf.String()
			for _, frag := range tt.want {
				if !strings.Contains(got, frag) {
					t.Errorf("summary %q missing %q", got, frag)
				}
			}
		})
	}
}

func TestWarnInfoPrefixes(t *testing.T) {
	p, buf := capture()
	p.Warnf("watch out %d", 1)
	p.Infof("fyi")
	got := buf.String()
	if !strings.Contains(got, "[warn] watch out 1") {
		t.Errorf("missing warn line: %q", got)
	}
	if !strings.Contains(got, "[info] fyi") {
		t.Errorf("missing info line: %q", got)
	}
}
