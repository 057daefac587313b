package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/klejdi94/weft/backend"
	"github.com/klejdi94/weft/runlog"
)

// Observe returns a middleware that records every completion call to rec
// under the given template name. Each record carries a fresh ID, the
// latency, token usage, and the outcome. Recording failures are dropped;
// the call's own result is returned either way.
func Observe(rec runlog.Recorder, template string) Middleware {
	return func(next backend.Backend) backend.Backend {
		return backend.Func(func(ctx context.Context, req backend.Request) (*backend.Response, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)
			record := runlog.Record{
				ID:        uuid.NewString(),
				Template:  template,
				Model:     req.Model,
				LatencyMs: time.Since(start).Milliseconds(),
				OK:        err == nil,
				At:        start,
			}
			if resp != nil {
				record.PromptTokens = resp.Usage.PromptTokens
				record.CompletionTokens = resp.Usage.CompletionTokens
				if record.Model == "" {
					record.Model = resp.Model
				}
			}
			_ = rec.Record(ctx, record)
			return resp, err
		})
	}
}
