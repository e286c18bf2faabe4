package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/okian/asamblea/pkg/logger"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(cfg *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}
}

// do sends a request with an optional JSON body and decodes a JSON reply
// into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && len(data) > 0 && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// submitIncrement posts one intervention and classifies the reply.
func submitIncrement(ctx context.Context, c *HTTPClient, assemblyID string, s Submission) outcome {
	var ack AckResponse
	code, err := c.do(ctx, http.MethodPost, "/assemblies/"+url.PathEscape(assemblyID)+"/interventions", s, &ack)
	return classify(code, err, ack)
}

// submitDecrement undoes one intervention in the submission's bucket.
func submitDecrement(ctx context.Context, c *HTTPClient, assemblyID string, s Submission) outcome {
	q := url.Values{"id": {s.ID}, "gender": {s.Gender}, "type": {s.Type}}
	var ack AckResponse
	code, err := c.do(ctx, http.MethodDelete, "/assemblies/"+url.PathEscape(assemblyID)+"/interventions?"+q.Encode(), nil, &ack)
	return classify(code, err, ack)
}

func classify(code int, err error, ack AckResponse) outcome {
	if err != nil {
		return outcomeFailed
	}
	switch code {
	case StatusAccepted:
		return outcomeAccepted
	case StatusOK:
		if ack.Duplicate {
			return outcomeDuplicate
		}
		return outcomeAccepted
	default:
		return outcomeFailed
	}
}

// tally counts submission outcomes across workers.
type tally struct {
	accepted  int64
	duplicate int64
	failed    int64
}

func (t *tally) record(o outcome) {
	switch o {
	case outcomeAccepted:
		atomic.AddInt64(&t.accepted, 1)
	case outcomeDuplicate:
		atomic.AddInt64(&t.duplicate, 1)
	default:
		atomic.AddInt64(&t.failed, 1)
	}
}

// submitAll sends subs through cfg.Workers concurrent workers.
func submitAll(ctx context.Context, cfg *Config, subs []Submission, send func(context.Context, Submission) outcome) *tally {
	t := &tally{}
	if len(subs) == 0 {
		return t
	}
	log := logger.Get()

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	ch := make(chan Submission, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				o := send(ctx, s)
				t.record(o)
				if o == outcomeFailed && cfg.Verbose {
					log.Warn(ctx, "submission failed", logger.String("id", s.ID))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()

	wg.Wait()
	return t
}
