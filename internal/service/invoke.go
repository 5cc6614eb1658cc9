package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/mq"
)

// InvocationResult is the coarse outcome reported to a scheduler
type InvocationResult struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Invoke runs the pipeline once and reports 200 or 500. Panics are recovered and
// reported as failures.
func Invoke(ctx context.Context, p *Pipeline) InvocationResult {
	return invoke(func() (string, error) {
		summary, err := p.Run(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ETL pipeline executed successfully! run %s inserted %d rows", summary.RunID, summary.Load.Inserted), nil
	})
}

// InvokeArchive runs the archiver once and reports 200 or 500.
func InvokeArchive(ctx context.Context, a *Archiver) InvocationResult {
	return invoke(func() (string, error) {
		summary, err := a.Run(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Archive executed successfully! %d plants archived", len(summary.Archived)), nil
	})
}

func invoke(job func() (string, error)) (result InvocationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = InvocationResult{
				StatusCode: http.StatusInternalServerError,
				Body:       fmt.Sprintf("An unexpected error occurred: %v", rec),
			}
		}
	}()

	body, err := job()
	if err != nil {
		return InvocationResult{
			StatusCode: http.StatusInternalServerError,
			Body:       fmt.Sprintf("An unexpected error occurred: %v", err),
		}
	}
	return InvocationResult{StatusCode: http.StatusOK, Body: body}
}

// HandleTrigger runs the pipeline for one trigger message. An empty body is a valid
// trigger; a body that is not a JSON trigger message is rejected.
func (p *Pipeline) HandleTrigger(ctx context.Context, body []byte) error {
	var msg mq.TriggerMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal trigger message: %w", err)
		}
	}

	p.deps.Logger.Info("pipeline run requested",
		zap.String("request_id", msg.RequestID),
		zap.String("requested_by", msg.RequestedBy),
	)

	_, err := p.Run(ctx)
	return err
}

// RunEvery runs the pipeline immediately and then on every tick of interval until
// ctx is cancelled. A failed run is logged and the schedule continues.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result := Invoke(ctx, p)
		if result.StatusCode != http.StatusOK {
			p.deps.Logger.Warn("scheduled run failed", zap.String("body", result.Body))
		}

		select {
		case <-ctx.Done():
			p.deps.Logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
