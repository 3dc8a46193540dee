// Package runner executes a dump plan against the live client with bounded
// parallelism. Items are independent: each gets its own jitter, retries, and
// output files, and a failing item never aborts the batch.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lcu-tools/lcudump/internal/jsonio"
	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/internal/planner"
)

// ClientFactory yields a fresh HTTP client. The runner calls it once per
// worker so connection state is never shared between workers.
type ClientFactory func() *http.Client

// Options configures a run.
type Options struct {
	BaseURL string
	// Timeout bounds each individual attempt; it restarts on retry.
	Timeout     time.Duration
	Attempts    int
	Concurrency int
	// JitterMin/JitterMax bound the politeness delay drawn before each item.
	JitterMin time.Duration
	JitterMax time.Duration
	UserAgent string
}

// Result is the final tally of a run. Total == OK + Failed + Skipped always
// holds: every planned item resolves to exactly one bucket.
type Result struct {
	Total   int
	OK      int
	Failed  int
	Skipped int
	// BodyBytes is the sum of response body sizes fetched successfully.
	BodyBytes int64
}

// Cancel is the cooperative cancellation token shared between the signal
// handler and the workers. Workers poll it before starting an item; requests
// already in flight are allowed to finish.
type Cancel struct {
	flag atomic.Bool
}

// NewCancel returns an unsignalled token.
func NewCancel() *Cancel { return &Cancel{} }

// Signal marks the token; no new item starts afterwards.
func (c *Cancel) Signal() { c.flag.Store(true) }

// Signalled reports whether cancellation was requested.
func (c *Cancel) Signalled() bool { return c.flag.Load() }

// Meta is the per-item metadata record persisted next to each response.
type Meta struct {
	Timestamp  string            `json:"timestamp"`
	StatusCode int               `json:"statusCode"`
	DurationMs int64             `json:"durationMs"`
	// RequestHeaders carries an allow-listed subset only; the credential
	// header is never recorded.
	RequestHeaders map[string]string `json:"requestHeaders"`
	Errors         string            `json:"errors,omitempty"`
}

type status int

const (
	statusOK status = iota
	statusFailed
	statusSkipped
)

type outcome struct {
	item      planner.Item
	status    status
	err       string
	bodyBytes int64
}

var headerAllowList = []string{"Accept", "Content-Type", "User-Agent"}

const backoffStep = 500 * time.Millisecond

// Run drains the plan with a fixed pool of Concurrency workers and returns
// the tally. Item completion order is unspecified.
func Run(ctx context.Context, plan planner.Plan, factory ClientFactory, opts Options, cancel *Cancel, log logger.Logger) Result {
	total := len(plan.Items)
	if total == 0 {
		log.Info("no endpoints to process after filtering")
		return Result{}
	}
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	items := make(chan planner.Item)
	outcomes := make(chan outcome, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			client := factory()
			for item := range items {
				outcomes <- processItem(ctx, client, item, opts, cancel)
			}
			return nil
		})
	}
	go func() {
		for _, item := range plan.Items {
			items <- item
		}
		close(items)
	}()
	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	// Single aggregating consumer; workers never touch the tally directly.
	res := Result{Total: total}
	for o := range outcomes {
		switch o.status {
		case statusOK:
			res.OK++
			res.BodyBytes += o.bodyBytes
			log.Info("dumped", "method", o.item.Method, "path", o.item.RenderedPath)
		case statusFailed:
			res.Failed++
			log.Warn("request failed", "method", o.item.Method, "path", o.item.RenderedPath, "error", o.err)
		case statusSkipped:
			res.Skipped++
			log.Debug("skipped (cancelled)", "method", o.item.Method, "path", o.item.RenderedPath)
		}
	}
	return res
}

func processItem(ctx context.Context, client *http.Client, item planner.Item, opts Options, cancel *Cancel) outcome {
	if cancel != nil && cancel.Signalled() {
		return outcome{item: item, status: statusSkipped}
	}

	sleepJitter(opts.JitterMin, opts.JitterMax)

	payload, bodyLen, meta := attemptRequest(ctx, client, item, opts)

	if payload == nil {
		// Transport exhausted: persist the failure metadata, no body file.
		if err := jsonio.WriteFile(item.MetaPath, meta); err != nil {
			return outcome{item: item, status: statusFailed, err: fmt.Sprintf("%s; meta write: %v", meta.Errors, err)}
		}
		return outcome{item: item, status: statusFailed, err: meta.Errors}
	}

	if err := jsonio.WriteFile(item.ResponsePath, payload); err != nil {
		// A write failure downgrades an otherwise-ok item.
		meta.Errors = appendError(meta.Errors, fmt.Sprintf("write: %v", err))
		_ = jsonio.WriteFile(item.MetaPath, meta)
		return outcome{item: item, status: statusFailed, err: meta.Errors}
	}
	if err := jsonio.WriteFile(item.MetaPath, meta); err != nil {
		return outcome{item: item, status: statusFailed, err: fmt.Sprintf("meta write: %v", err)}
	}
	return outcome{item: item, status: statusOK, bodyBytes: int64(bodyLen)}
}

// attemptRequest tries the request up to opts.Attempts times with linear
// backoff between transport failures. Any received HTTP response, whatever
// its status code, is a completed attempt and stops retrying.
func attemptRequest(ctx context.Context, client *http.Client, item planner.Item, opts Options) (payload any, bodyLen int, meta Meta) {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr string
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		body, resp, err := doRequest(ctx, client, item, opts)
		if err != nil {
			lastErr = err.Error()
			if attempt < attempts {
				time.Sleep(time.Duration(attempt) * backoffStep)
			}
			continue
		}

		meta = Meta{
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			StatusCode:     resp.StatusCode,
			DurationMs:     time.Since(start).Milliseconds(),
			RequestHeaders: allowedHeaders(resp.Request),
		}

		var parsed any
		if json.Unmarshal(body, &parsed) == nil {
			return map[string]any{"data": parsed}, len(body), meta
		}
		return map[string]any{
			"text":        string(body),
			"contentType": resp.Header.Get("Content-Type"),
		}, len(body), meta
	}

	if lastErr == "" {
		lastErr = "unknown error"
	}
	return nil, 0, Meta{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		StatusCode:     0,
		DurationMs:     0,
		RequestHeaders: map[string]string{},
		Errors:         lastErr,
	}
}

func doRequest(ctx context.Context, client *http.Client, item planner.Item, opts Options) ([]byte, *http.Response, error) {
	if opts.Timeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, opts.Timeout)
		defer cancelFn()
	}
	req, err := http.NewRequestWithContext(ctx, item.Method, opts.BaseURL+item.RenderedPath, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}

func allowedHeaders(req *http.Request) map[string]string {
	out := make(map[string]string, len(headerAllowList))
	if req == nil {
		return out
	}
	for _, key := range headerAllowList {
		if v := req.Header.Get(key); v != "" {
			out[key] = v
		}
	}
	return out
}

func appendError(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

func sleepJitter(min, max time.Duration) {
	if max <= 0 || max < min {
		return
	}
	if max == min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}
