package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tolerance matching the posting engine's balance check.
const integrityTolerance = 0.01

// IntegrityJob sweeps posted entries for reference keys whose debits and
// credits have drifted apart. The posting engine guarantees balance at
// write time; this catches manual SQL surgery and migration damage.
type IntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewIntegrityTask constructs an Asynq task with an empty payload.
func NewIntegrityTask() *asynq.Task {
	data, _ := json.Marshal(struct{}{})
	return asynq.NewTask(TaskTypeLedgerIntegrity, data)
}

// Handle runs one integrity sweep.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	rows, err := j.Pool.Query(ctx, `SELECT reference_type, reference_id,
COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
FROM ledger_entries
GROUP BY reference_type, reference_id
HAVING ABS(COALESCE(SUM(debit), 0) - COALESCE(SUM(credit), 0)) > $1`, integrityTolerance)
	if err != nil {
		return err
	}
	defer rows.Close()

	var unbalanced int
	for rows.Next() {
		var refType string
		var refID int64
		var debit, credit float64
		if err := rows.Scan(&refType, &refID, &debit, &credit); err != nil {
			return err
		}
		unbalanced++
		j.Logger.Warn("unbalanced reference key",
			slog.String("reference_type", refType),
			slog.Int64("reference_id", refID),
			slog.Float64("debit", debit),
			slog.Float64("credit", credit))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if unbalanced == 0 {
		j.Logger.Info("ledger integrity sweep clean")
	} else {
		j.Logger.Error("ledger integrity sweep found drift", slog.Int("unbalanced_keys", unbalanced))
	}
	return nil
}
