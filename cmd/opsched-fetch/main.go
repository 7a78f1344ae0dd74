// Command opsched-fetch fetches a batch of URLs through an opsched.Scheduler,
// demonstrating priority dispatch, per-host serialization, and graceful
// shutdown against real network I/O. Each URL is submitted as a SubmitTask
// body; URLs sharing a host are submitted under that host as the key, so
// at most one request per host is ever in flight at a time, while requests
// to distinct hosts run with full concurrency up to -ceiling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Andrej220/opsched"
	"github.com/Andrej220/opsched/autostr"
	"github.com/Andrej220/opsched/backoff"
	srvx "github.com/Andrej220/opsched/httpsrv"
	"github.com/Andrej220/opsched/zlog"
)

// fetchResult is the outcome of a single URL fetch, logged via autostr so
// every field renders as a readable trace line without a bespoke String
// method.
type fetchResult struct {
	URL      string        `string:"include" display:"url"`
	Status   int           `string:"include" display:"status"`
	Bytes    int64         `string:"include" display:"bytes"`
	Duration time.Duration `string:"include" display:"duration"`
	Attempts int           `string:"include" display:"attempts"`
}

func hostKey(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func fetchWithRetry(ctx context.Context, client *http.Client, target string) (fetchResult, error) {
	b := backoff.New(backoff.InitialBackoff, backoff.MaxBackoff, time.Now().UnixNano())
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fetchResult{}, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return fetchResult{}, ctx.Err()
			case <-time.After(b.Next()):
				continue
			}
		}
		n, _ := drainAndCount(resp)
		resp.Body.Close()
		return fetchResult{
			URL:      target,
			Status:   resp.StatusCode,
			Bytes:    n,
			Duration: time.Since(start),
			Attempts: attempt,
		}, nil
	}
	return fetchResult{}, fmt.Errorf("giving up on %s after retries: %w", target, lastErr)
}

func drainAndCount(resp *http.Response) (int64, error) {
	var n int64
	buf := make([]byte, 32*1024)
	for {
		k, err := resp.Body.Read(buf)
		n += int64(k)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
	}
}

func main() {
	ceiling := flag.Int("ceiling", 4, "maximum concurrent in-flight fetches")
	priority := flag.Int("priority", 0, "priority assigned to every submitted fetch")
	sharedKey := flag.String("key", "", "force every fetch to share this serialization key, overriding per-host keys")
	statsAddr := flag.String("stats-port", "", "if set, serve GET /stats with scheduler stats on this port")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: opsched-fetch [flags] URL [URL...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := zlog.NewDefault("opsched-fetch")
	defer logger.Sync()

	sched, err := opsched.NewScheduler(opsched.Config{
		Ceiling: *ceiling,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build scheduler", zlog.Any("error", err))
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}

	if *statsAddr != "" {
		go serveAPI(sched, logger, *statsAddr, client)
	}

	var handles []*opsched.Handle[fetchResult]
	for _, u := range urls {
		key := *sharedKey
		if key == "" {
			key = hostKey(u)
		}
		target := u
		h, err := opsched.SubmitTask(sched, *priority, key, nil, func(ctx context.Context) (fetchResult, error) {
			return fetchWithRetry(ctx, client, target)
		})
		if err != nil {
			logger.Error("submit failed", zlog.String("url", target), zlog.Any("error", err))
			continue
		}
		handles = append(handles, h)
	}

	exitCode := 0
	for _, h := range handles {
		v, err := h.Wait(context.Background())
		if err != nil {
			if errors.Is(err, opsched.ErrOperationCancelled) {
				logger.Warn("fetch cancelled")
			} else {
				logger.Error("fetch failed", zlog.Any("error", err))
			}
			exitCode = 1
			continue
		}
		logger.Info("fetch complete", zlog.String("result", autostr.String(v)))
	}

	sig := sched.Shutdown()
	<-sig.Done()
	if sig.Err() != nil {
		logger.Error("scheduler shutdown reported errors", zlog.Any("error", sig.Err()))
		exitCode = 1
	}

	os.Exit(exitCode)
}

// submitRequest is the JSON body accepted by POST /submit: one more URL to
// fetch through the same scheduler the CLI's own batch runs on.
type submitRequest struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"`
	Key      string `json:"key"`
}

func validateSubmitRequest(req *submitRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// serveAPI exposes the scheduler's live admission state as JSON on GET
// /stats, and accepts ad-hoc additional fetches on POST /submit, reusing
// the srvx server scaffolding (graceful interrupt handling) and its
// generic JSON validation middleware.
func serveAPI(sched *opsched.Scheduler, logger zlog.ZLogger, port string, client *http.Client) {
	mux := http.NewServeMux()

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := sched.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{
			"in_flight": stats.InFlight,
			"queued":    stats.Queued,
			"ceiling":   stats.Ceiling,
		})
	})

	submitHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := srvx.GetRequest[submitRequest](r.Context())
		if !ok {
			srvx.WriteJSONError(w, srvx.APIError{Code: "internal", Message: "request not decoded", Status: http.StatusInternalServerError})
			return
		}
		key := req.Key
		if key == "" {
			key = hostKey(req.URL)
		}
		target := req.URL
		if _, err := opsched.SubmitTask(sched, req.Priority, key, nil, func(ctx context.Context) (fetchResult, error) {
			return fetchWithRetry(ctx, client, target)
		}); err != nil {
			srvx.WriteJSONError(w, srvx.APIError{Code: "rejected", Message: err.Error(), Status: http.StatusServiceUnavailable})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.Handle("/submit", srvx.NewValidationHandler[submitRequest](submitHandler, validateSubmitRequest))

	cfg := srvx.DefaultServerConfig(logger)
	cfg.Port = strings.TrimPrefix(port, ":")
	if err := srvx.RunServer(mux, cfg); err != nil {
		logger.Error("API server stopped", zlog.Any("error", err))
	}
}
