package storage

// Bounded backoff plus a Cloud Tasks durable hedge. Grounded on the
// teacher's CloudDispatcher: an in-process path is attempted first and,
// if it's still failing once the backoff budget is spent, the write is
// handed to Cloud Tasks for durable, at-least-once retry outside this
// process's lifetime.

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
)

// maxInProcessAttempts bounds the in-process retry loop (§5): a tier
// write that hasn't succeeded after this many tries is handed off to the
// durable hedge rather than retried forever.
const maxInProcessAttempts = 5

// RetryingTier wraps a Tier with bounded exponential backoff, falling
// back to a Cloud Tasks-backed durable hedge when every in-process
// attempt fails.
type RetryingTier struct {
	inner  Tier
	hedge  *DurableHedge
	logger *log.Logger
}

// NewRetryingTier wraps inner. hedge may be nil, in which case a
// permanently-failing tier only logs and drops (used in tests and local
// dev where no Cloud Tasks queue is configured).
func NewRetryingTier(inner Tier, hedge *DurableHedge) *RetryingTier {
	return &RetryingTier{
		inner:  inner,
		hedge:  hedge,
		logger: log.New(log.Writer(), fmt.Sprintf("[retry:%s] ", inner.Name()), log.LstdFlags),
	}
}

func (t *RetryingTier) Name() string { return t.inner.Name() }

// Write tries inner.Write up to maxInProcessAttempts times, sleeping
// 100ms * 2^(k-1) before retry k (100ms, 200ms, 400ms, ...), then hands
// off to the durable hedge if every attempt failed.
func (t *RetryingTier) Write(record EventRecord) error {
	var lastErr error
	for attempt := 0; attempt < maxInProcessAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*math.Pow(2, float64(attempt-1))) * time.Millisecond
			time.Sleep(backoff)
		}
		if err := t.inner.Write(record); err != nil {
			lastErr = err
			t.logger.Printf("attempt %d/%d failed for event %s: %v", attempt+1, maxInProcessAttempts, record.EventID, err)
			continue
		}
		return nil
	}

	if t.hedge == nil {
		return fmt.Errorf("storage: %s exhausted %d attempts for event %s: %w", t.inner.Name(), maxInProcessAttempts, record.EventID, lastErr)
	}

	if err := t.hedge.enqueue(t.inner.Name(), record); err != nil {
		return fmt.Errorf("storage: %s exhausted retries and durable hedge failed for event %s: %w", t.inner.Name(), record.EventID, err)
	}
	t.logger.Printf("handed off event %s to durable hedge after %d failed attempts", record.EventID, maxInProcessAttempts)
	return nil
}

// DurableHedge enqueues a failed tier write as a Cloud Task so it is
// retried outside this process's lifetime instead of being dropped.
type DurableHedge struct {
	client    *cloudtasks.Client
	queuePath string
	logger    *log.Logger
}

// NewDurableHedge constructs a hedge targeting the named Cloud Tasks
// queue.
func NewDurableHedge(ctx context.Context, projectID, locationID, queueID string) (*DurableHedge, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudtasks.NewClient: %w", err)
	}
	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, locationID, queueID)
	return &DurableHedge{
		client:    client,
		queuePath: queuePath,
		logger:    log.New(log.Writer(), "[durable-hedge] ", log.LstdFlags),
	}, nil
}

// enqueue submits a task that replays the tier write against the
// worker's HTTP replay endpoint for tierName.
func (h *DurableHedge) enqueue(tierName string, record EventRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("storage: marshaling hedge payload: %w", err)
	}

	req := &taskspb.CreateTaskRequest{
		Parent: h.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        fmt.Sprintf("/internal/ledger/replay/%s", tierName),
					Headers:    map[string]string{"Content-Type": "application/json"},
					Body:       payload,
				},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.client.CreateTask(ctx, req); err != nil {
		return fmt.Errorf("storage: enqueueing durable hedge task: %w", err)
	}
	h.logger.Printf("enqueued durable replay for %s tier, event %s", tierName, record.EventID)
	return nil
}
