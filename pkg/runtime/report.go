package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sealrunner/sealrunner/pkg/types"
)

// reporter posts task results to an optional controller endpoint.
// Failures, including a non-2xx reply, are logged at warn level and the
// event is dropped without retry: a sealed binary must finish its local work
// regardless of whether anyone is listening on the other end, so a
// reporter with no ControllerURL configured is simply a no-op.
type reporter struct {
	url    string
	client *http.Client
}

func newReporter(url string) *reporter {
	return &reporter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type progressEvent struct {
	TaskID string           `json:"task_id"`
	Result types.TaskResult `json:"result"`
	Time   time.Time        `json:"time"`
}

// report sends result asynchronously and never blocks the caller on
// network I/O; it is fire-and-forget by design.
func (r *reporter) report(ctx context.Context, taskID string, result types.TaskResult) {
	if r.url == "" {
		return
	}

	body, err := json.Marshal(progressEvent{TaskID: taskID, Result: result, Time: time.Now()})
	if err != nil {
		return
	}

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("task_id", taskID).Msg("failed to post progress event to controller")
			return
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			log.Warn().Int("status", resp.StatusCode).Str("event", "task_result").Str("task_id", taskID).
				Msg("controller rejected progress event")
		}
	}()
}
