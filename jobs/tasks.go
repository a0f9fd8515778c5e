package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLedgerRebuild reconstructs ledger entries for a date range.
	TaskTypeLedgerRebuild = "ledger:rebuild"
	// TaskTypeLedgerIntegrity scans posted entries for unbalanced keys.
	TaskTypeLedgerIntegrity = "ledger:integrity"
)

const dateLayout = "2006-01-02"

// LedgerRebuildPayload describes one rebuild request on the wire.
type LedgerRebuildPayload struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Kinds   []string `json:"kinds,omitempty"`
	DryRun  bool     `json:"dry_run,omitempty"`
	ActorID *int64   `json:"actor_id,omitempty"`
}

// NewLedgerRebuildTask constructs an Asynq task.
func NewLedgerRebuildTask(payload LedgerRebuildPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerRebuild, data), nil
}

// RebuildJob runs queued ledger rebuilds.
type RebuildJob struct {
	Service *ledger.Service
	Logger  *slog.Logger
}

// Handle executes one rebuild task.
func (j *RebuildJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerRebuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	in, err := payload.toInput()
	if err != nil {
		j.Logger.Error("rebuild payload rejected", slog.Any("error", err))
		return asynq.SkipRetry
	}

	summary, err := j.Service.Rebuild(ctx, in, j.Logger)
	if err != nil {
		j.Logger.Error("ledger rebuild failed",
			slog.String("start", payload.Start),
			slog.String("end", payload.End),
			slog.Any("error", err))
		return err
	}
	j.Logger.Info("ledger rebuild task done",
		slog.String("run_id", summary.RunID.String()),
		slog.Int64("deleted", summary.Deleted),
		slog.Int("created", summary.Created))
	return nil
}

func (p LedgerRebuildPayload) toInput() (ledger.RebuildInput, error) {
	start, err := time.Parse(dateLayout, p.Start)
	if err != nil {
		return ledger.RebuildInput{}, err
	}
	end, err := time.Parse(dateLayout, p.End)
	if err != nil {
		return ledger.RebuildInput{}, err
	}
	kinds := make([]ledger.ReferenceType, 0, len(p.Kinds))
	for _, k := range p.Kinds {
		kinds = append(kinds, ledger.ReferenceType(k))
	}
	return ledger.RebuildInput{Start: start, End: end, Kinds: kinds, DryRun: p.DryRun, ActorID: p.ActorID}, nil
}
