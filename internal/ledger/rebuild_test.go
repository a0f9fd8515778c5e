package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

func rebuildWindow() (time.Time, time.Time) {
	return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
}

func TestRebuildRepostsDocuments(t *testing.T) {
	repo := newMemRepo()
	docs := &memDocs{
		orders: []documents.Order{sampleOrder()},
		payments: []documents.Payment{{
			ID:          7,
			OrderNumber: "ORD-1001",
			PaymentDate: testDate,
			PaymentMode: "cash",
			Status:      "cleared",
			Amount:      1180,
		}},
	}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	start, end := rebuildWindow()
	summary, err := svc.Rebuild(ctx, RebuildInput{Start: start, End: end}, nil)
	require.NoError(t, err)
	require.False(t, summary.DryRun)
	require.Equal(t, 1, summary.Kinds[RefOrder].Processed)
	require.Equal(t, 1, summary.Kinds[RefPayment].Processed)
	require.Equal(t, 6, summary.Created)

	entries, err := repo.EntriesByReference(ctx, RefOrder, 1)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestRebuildSkipsCancelledOrder(t *testing.T) {
	repo := newMemRepo()
	cancelled := sampleOrder()
	cancelled.ID = 2
	cancelled.Number = "ORD-1002"
	cancelled.Status = "cancelled"
	docs := &memDocs{orders: []documents.Order{sampleOrder(), cancelled}}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	// The cancelled order was posted before cancellation; the rebuild
	// must clear its entries.
	live := cancelled
	live.Status = "confirmed"
	_, err := svc.PostOrder(ctx, live, nil)
	require.NoError(t, err)

	start, end := rebuildWindow()
	summary, err := svc.Rebuild(ctx, RebuildInput{Start: start, End: end, Kinds: []ReferenceType{RefOrder}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Kinds[RefOrder].Processed)
	require.Equal(t, 1, summary.Kinds[RefOrder].Skipped)

	entries, err := repo.EntriesByReference(ctx, RefOrder, 2)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRebuildDryRunLeavesLedgerUntouched(t *testing.T) {
	repo := newMemRepo()
	docs := &memDocs{orders: []documents.Order{sampleOrder()}}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	stale := sampleOrder()
	stale.TaxableAmount = 400
	stale.CGSTAmount = 36
	stale.SGSTAmount = 36
	stale.TotalAmount = 472
	_, err := svc.PostOrder(ctx, stale, nil)
	require.NoError(t, err)

	start, end := rebuildWindow()
	summary, err := svc.Rebuild(ctx, RebuildInput{Start: start, End: end, DryRun: true}, nil)
	require.NoError(t, err)
	require.True(t, summary.DryRun)
	require.Equal(t, int64(4), summary.Deleted)
	require.Equal(t, 4, summary.Created)
	require.Equal(t, 1, summary.Kinds[RefOrder].Processed)

	// Stale amounts must survive a dry run.
	entries, err := repo.EntriesByReference(ctx, RefOrder, 1)
	require.NoError(t, err)
	debit, _ := entrySums(entries)
	require.InDelta(t, 472, debit, 0.001)
}

func TestRebuildKindFilter(t *testing.T) {
	repo := newMemRepo()
	docs := &memDocs{
		orders: []documents.Order{sampleOrder()},
		payments: []documents.Payment{{
			ID:          7,
			PaymentDate: testDate,
			PaymentMode: "cash",
			Status:      "cleared",
			Amount:      1180,
		}},
	}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	_, err := svc.PostOrder(ctx, sampleOrder(), nil)
	require.NoError(t, err)

	start, end := rebuildWindow()
	summary, err := svc.Rebuild(ctx, RebuildInput{Start: start, End: end, Kinds: []ReferenceType{RefPayment}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Kinds[RefPayment].Processed)
	_, ok := summary.Kinds[RefOrder]
	require.False(t, ok)

	// Order entries are outside the selected kinds and stay put.
	entries, err := repo.EntriesByReference(ctx, RefOrder, 1)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestRebuildNeverTouchesOpeningBalances(t *testing.T) {
	repo := newMemRepo()
	bank := repo.addAccount("Bank", RootTypeAsset)
	docs := &memDocs{}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	_, err := svc.PostOpeningBalance(ctx, bank.ID, 50000, testDate, nil)
	require.NoError(t, err)

	start, end := rebuildWindow()
	summary, err := svc.Rebuild(ctx, RebuildInput{Start: start, End: end}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.Deleted)

	entries, err := repo.EntriesByReference(ctx, RefOpeningBalance, bank.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRebuildWaitsForConcurrentPosting(t *testing.T) {
	repo := newMemRepo()
	docs := &memDocs{orders: []documents.Order{sampleOrder()}}
	svc := newTestService(repo, docs)
	ctx := context.Background()

	_, err := svc.PostOrder(ctx, sampleOrder(), nil)
	require.NoError(t, err)

	svc.SetLocks(heldLocks{})
	start, end := rebuildWindow()
	_, err = svc.Rebuild(ctx, RebuildInput{Start: start, End: end}, nil)
	require.ErrorIs(t, err, ErrPostingLocked)

	// Nothing may be wiped while a posting holds its lock.
	entries, err := repo.EntriesByReference(ctx, RefOrder, 1)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestRebuildRejectsNonRebuildableKind(t *testing.T) {
	svc := newTestService(newMemRepo(), &memDocs{})
	start, end := rebuildWindow()
	_, err := svc.Rebuild(context.Background(), RebuildInput{
		Start: start,
		End:   end,
		Kinds: []ReferenceType{RefOpeningBalance},
	}, nil)
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestRebuildRejectsInvertedRange(t *testing.T) {
	svc := newTestService(newMemRepo(), &memDocs{})
	start, end := rebuildWindow()
	_, err := svc.Rebuild(context.Background(), RebuildInput{Start: end, End: start}, nil)
	require.ErrorIs(t, err, ErrRebuildRange)
}
