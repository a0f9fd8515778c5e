package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrRebuildRange is returned when the rebuild window is inverted.
var ErrRebuildRange = errors.New("ledger: rebuild end date before start date")

// errDryRunRollback aborts the rebuild transaction after the summary has
// been computed. It never escapes Rebuild.
var errDryRunRollback = errors.New("ledger: dry run rollback")

// RebuildInput selects the window and document kinds to reconstruct.
// Empty Kinds means every rebuildable kind. Opening balances and manual
// entries are never touched.
type RebuildInput struct {
	Start   time.Time
	End     time.Time
	Kinds   []ReferenceType
	DryRun  bool
	ActorID *int64
}

// RebuildKindStats counts documents handled for one reference type.
type RebuildKindStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// RebuildSummary reports what a rebuild run did, or would do for a dry run.
type RebuildSummary struct {
	RunID   uuid.UUID                          `json:"run_id"`
	DryRun  bool                               `json:"dry_run"`
	Start   time.Time                          `json:"start"`
	End     time.Time                          `json:"end"`
	Deleted int64                              `json:"deleted"`
	Created int                                `json:"created"`
	Kinds   map[ReferenceType]RebuildKindStats `json:"kinds"`
}

// Rebuild wipes the selected kinds' entries in the date range and reposts
// every source document found in the range, all in one transaction. The run
// holds the rebuild lock, so no document posting can interleave with it. A
// dry run computes the same summary and rolls the transaction back.
func (s *Service) Rebuild(ctx context.Context, in RebuildInput, log *slog.Logger) (RebuildSummary, error) {
	if log == nil {
		log = slog.Default()
	}
	summary := RebuildSummary{
		RunID:  uuid.New(),
		DryRun: in.DryRun,
		Start:  in.Start,
		End:    in.End,
		Kinds:  map[ReferenceType]RebuildKindStats{},
	}
	if in.End.Before(in.Start) {
		return summary, ErrRebuildRange
	}

	kinds := in.Kinds
	if len(kinds) == 0 {
		kinds = RebuildableKinds
	}
	for _, k := range kinds {
		if !k.Rebuildable() {
			return summary, fmt.Errorf("%w: %s is not rebuildable", ErrInvalidReference, k)
		}
	}

	if s.locks != nil {
		release, err := s.locks.AcquireRebuild(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return summary, ErrPostingLocked
			}
			return summary, err
		}
		defer release()
	}

	log.Info("ledger rebuild starting",
		"run_id", summary.RunID,
		"start", in.Start.Format("2006-01-02"),
		"end", in.End.Format("2006-01-02"),
		"kinds", len(kinds),
		"dry_run", in.DryRun)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deleted, err := tx.DeleteEntriesInRange(ctx, in.Start, in.End, kinds)
		if err != nil {
			return err
		}
		summary.Deleted = deleted

		for _, kind := range kinds {
			stats, created, err := s.rebuildKind(ctx, tx, kind, in)
			if err != nil {
				return fmt.Errorf("rebuild %s: %w", kind, err)
			}
			summary.Kinds[kind] = stats
			summary.Created += created
		}

		if in.DryRun {
			return errDryRunRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRunRollback) {
		return RebuildSummary{RunID: summary.RunID, DryRun: in.DryRun, Start: in.Start, End: in.End}, err
	}

	log.Info("ledger rebuild finished",
		"run_id", summary.RunID,
		"deleted", summary.Deleted,
		"created", summary.Created,
		"dry_run", in.DryRun)
	s.recordRebuildAudit(ctx, summary, in.ActorID)
	return summary, nil
}

// rebuildKind reposts every source document of one kind in the window.
// Per-document deletes run again even though the range wipe already ran:
// a document whose date moved can still own entries outside the window.
func (s *Service) rebuildKind(ctx context.Context, tx TxRepository, kind ReferenceType, in RebuildInput) (RebuildKindStats, int, error) {
	var stats RebuildKindStats
	var created int

	repost := func(refID int64, date time.Time, build func(context.Context, TxRepository) ([]Line, string, error)) error {
		res, err := s.replace(ctx, tx, kind, refID, date, in.ActorID, build)
		if err != nil {
			return err
		}
		if res.Skipped {
			stats.Skipped++
		} else {
			stats.Processed++
			created += res.Entries
		}
		return nil
	}

	switch kind {
	case RefOrder:
		orders, err := s.docs.OrdersInRange(ctx, in.Start, in.End)
		if err != nil {
			return stats, created, err
		}
		for _, order := range orders {
			order := order
			if err := repost(order.ID, order.OrderDate, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
				return s.orderLines(ctx, tx, order)
			}); err != nil {
				return stats, created, err
			}
		}
	case RefPayment:
		payments, err := s.docs.PaymentsInRange(ctx, in.Start, in.End)
		if err != nil {
			return stats, created, err
		}
		for _, payment := range payments {
			payment := payment
			if err := repost(payment.ID, payment.PaymentDate, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
				return s.paymentLines(ctx, tx, payment)
			}); err != nil {
				return stats, created, err
			}
		}
	case RefExpense:
		expenses, err := s.docs.ExpensesInRange(ctx, in.Start, in.End)
		if err != nil {
			return stats, created, err
		}
		for _, expense := range expenses {
			expense := expense
			if err := repost(expense.ID, expense.ExpenseDate, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
				return s.expenseLines(ctx, tx, expense)
			}); err != nil {
				return stats, created, err
			}
		}
	case RefVendorBill:
		bills, err := s.docs.VendorBillsInRange(ctx, in.Start, in.End)
		if err != nil {
			return stats, created, err
		}
		for _, bill := range bills {
			bill := bill
			if err := repost(bill.ID, bill.BillDate, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
				return s.vendorBillLines(ctx, tx, bill)
			}); err != nil {
				return stats, created, err
			}
		}
	case RefVendorPayment:
		vps, err := s.docs.VendorPaymentsInRange(ctx, in.Start, in.End)
		if err != nil {
			return stats, created, err
		}
		for _, vp := range vps {
			vp := vp
			if err := repost(vp.ID, vp.PaymentDate, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
				return s.vendorPaymentLines(ctx, tx, vp)
			}); err != nil {
				return stats, created, err
			}
		}
	default:
		return stats, created, fmt.Errorf("%w: %s", ErrInvalidReference, kind)
	}
	return stats, created, nil
}

func (s *Service) recordRebuildAudit(ctx context.Context, summary RebuildSummary, actorID *int64) {
	if s.audit == nil {
		return
	}
	var actor int64
	if actorID != nil {
		actor = *actorID
	}
	kinds := make(map[string]any, len(summary.Kinds))
	for k, v := range summary.Kinds {
		kinds[string(k)] = map[string]any{"processed": v.Processed, "skipped": v.Skipped}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   "ledger.rebuild",
		Entity:   "ledger_rebuild",
		EntityID: summary.RunID.String(),
		Meta: map[string]any{
			"dry_run": summary.DryRun,
			"deleted": summary.Deleted,
			"created": summary.Created,
			"kinds":   kinds,
		},
		At: s.now(),
	})
}
