package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/documents"
)

// seedLedger posts an opening balance in March and an order plus a cash
// receipt in April.
func seedLedger(t *testing.T) (*memRepo, *Balances) {
	t.Helper()
	repo := newMemRepo()
	bank := repo.addAccount("Bank", RootTypeAsset)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.PostOpeningBalance(ctx, bank.ID, 50000, march, nil)
	require.NoError(t, err)

	_, err = svc.PostOrder(ctx, sampleOrder(), nil)
	require.NoError(t, err)

	_, err = svc.PostPayment(ctx, documents.Payment{
		ID:          7,
		OrderNumber: "ORD-1001",
		PaymentDate: testDate,
		PaymentMode: "cash",
		Status:      "cleared",
		Amount:      1180,
	}, nil)
	require.NoError(t, err)

	return repo, NewBalances(repo)
}

func TestAccountStatementOpeningAndRunningBalance(t *testing.T) {
	repo, balances := seedLedger(t)
	ctx := context.Background()

	ar := accountByName(t, repo, "Accounts Receivable")
	start, end := rebuildWindow()
	statement, err := balances.AccountStatement(ctx, ar.ID, start, end)
	require.NoError(t, err)

	require.InDelta(t, 0, statement.Opening, 0.001)
	require.Len(t, statement.Rows, 2)
	// Order debit then receipt credit, each updating the running balance.
	require.InDelta(t, 1180, statement.Rows[0].Balance, 0.001)
	require.InDelta(t, 0, statement.Rows[1].Balance, 0.001)
	require.InDelta(t, 0, statement.Closing, 0.001)
}

func TestAccountStatementCarriesOpeningIn(t *testing.T) {
	repo, balances := seedLedger(t)
	ctx := context.Background()

	bank := accountByName(t, repo, "Bank")
	start, end := rebuildWindow()
	statement, err := balances.AccountStatement(ctx, bank.ID, start, end)
	require.NoError(t, err)

	// March opening balance lands before the April window.
	require.InDelta(t, 50000, statement.Opening, 0.001)
	require.InDelta(t, 50000, statement.Closing, 0.001)
}

func TestAccountBalanceNaturalSign(t *testing.T) {
	repo, balances := seedLedger(t)
	ctx := context.Background()

	cgst := accountByName(t, repo, "Output CGST")
	view, err := balances.AccountBalance(ctx, cgst.ID, nil)
	require.NoError(t, err)
	require.InDelta(t, -90, view.Signed, 0.001)
	require.InDelta(t, 90, view.Natural, 0.001)

	cash := accountByName(t, repo, "Cash")
	cashView, err := balances.AccountBalance(ctx, cash.ID, nil)
	require.NoError(t, err)
	require.InDelta(t, 1180, cashView.Signed, 0.001)
	require.InDelta(t, 1180, cashView.Natural, 0.001)
}

func TestTrialBalanceCloses(t *testing.T) {
	_, balances := seedLedger(t)

	start, end := rebuildWindow()
	tb, err := balances.TrialBalance(context.Background(), start, end)
	require.NoError(t, err)
	require.NotEmpty(t, tb.Rows)
	require.InDelta(t, tb.TotalDebit, tb.TotalCredit, 0.01)
}

func TestBalanceSheetSections(t *testing.T) {
	_, balances := seedLedger(t)
	asOf := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)

	bs, err := balances.BalanceSheet(context.Background(), asOf)
	require.NoError(t, err)
	// Bank opening 50000 plus cash receipt 1180; AR nets to zero.
	require.InDelta(t, 51180, bs.Assets.Total, 0.01)
	require.InDelta(t, 180, bs.Liabilities.Total, 0.01)
	require.InDelta(t, 50000, bs.Equity.Total, 0.01)
	require.InDelta(t, 50180, bs.TotalLiabilitiesAndEquity, 0.01)

	// Assets equal liabilities plus equity plus unclosed profit.
	pl, err := balances.ProfitAndLoss(context.Background(), time.Time{}, asOf)
	require.NoError(t, err)
	require.InDelta(t, bs.Assets.Total, bs.TotalLiabilitiesAndEquity+pl.NetProfit, 0.01)
}

func TestProfitAndLossPeriodOnly(t *testing.T) {
	_, balances := seedLedger(t)

	start, end := rebuildWindow()
	pl, err := balances.ProfitAndLoss(context.Background(), start, end)
	require.NoError(t, err)
	require.InDelta(t, 1000, pl.Income.Total, 0.001)
	require.InDelta(t, 0, pl.Expense.Total, 0.001)
	require.InDelta(t, 1000, pl.NetProfit, 0.001)
}
