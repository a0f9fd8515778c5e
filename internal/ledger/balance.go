package ledger

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/reports"
)

// ReadRepository is the pool-level read surface the report service needs.
type ReadRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	EntriesByReference(ctx context.Context, ref ReferenceType, refID int64) ([]Entry, error)
	EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]Entry, error)
	SignedSumBefore(ctx context.Context, accountID int64, cutoff time.Time) (float64, error)
	SignedSumAsOf(ctx context.Context, accountID int64, cutoff *time.Time) (float64, error)
	AccountBalances(ctx context.Context, start, end time.Time) ([]reports.AccountBalance, error)
}

// Balances serves account balances and the financial reports. It only
// reads; the posting engine owns every write.
type Balances struct {
	repo ReadRepository
}

// NewBalances returns the report service.
func NewBalances(repo ReadRepository) *Balances {
	return &Balances{repo: repo}
}

// BalanceView is one account's balance at a cutoff. Signed is debit minus
// credit; Natural flips the sign for credit-natural accounts so a healthy
// balance reads positive either way.
type BalanceView struct {
	Account Account    `json:"account"`
	AsOf    *time.Time `json:"as_of,omitempty"`
	Signed  float64    `json:"signed"`
	Natural float64    `json:"natural"`
}

// AccountBalance returns one account's balance as of the cutoff date.
// A nil cutoff sums every entry.
func (b *Balances) AccountBalance(ctx context.Context, accountID int64, asOf *time.Time) (BalanceView, error) {
	account, err := b.repo.GetAccount(ctx, accountID)
	if err != nil {
		return BalanceView{}, err
	}
	signed, err := b.repo.SignedSumAsOf(ctx, accountID, asOf)
	if err != nil {
		return BalanceView{}, err
	}
	view := BalanceView{Account: account, AsOf: asOf, Signed: signed, Natural: signed}
	if !account.RootType.DebitNatural() {
		view.Natural = -signed
	}
	return view, nil
}

// StatementRow is one movement in a running account statement.
type StatementRow struct {
	Entry   Entry   `json:"entry"`
	Balance float64 `json:"balance"`
}

// Statement is an account's running ledger for a window: the signed
// balance carried in from before the window, then each movement with the
// balance after it.
type Statement struct {
	Account Account        `json:"account"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Opening float64        `json:"opening"`
	Rows    []StatementRow `json:"rows"`
	Closing float64        `json:"closing"`
}

// AccountStatement builds the running ledger for one account. Opening is
// the signed sum of entries strictly before the window start; the rows
// walk the window ordered by entry date then id.
func (b *Balances) AccountStatement(ctx context.Context, accountID int64, start, end time.Time) (Statement, error) {
	account, err := b.repo.GetAccount(ctx, accountID)
	if err != nil {
		return Statement{}, err
	}
	opening, err := b.repo.SignedSumBefore(ctx, accountID, start)
	if err != nil {
		return Statement{}, err
	}
	entries, err := b.repo.EntriesForAccount(ctx, accountID, start, end)
	if err != nil {
		return Statement{}, err
	}

	statement := Statement{Account: account, Start: start, End: end, Opening: opening}
	running := opening
	for _, entry := range entries {
		running += entry.Debit - entry.Credit
		statement.Rows = append(statement.Rows, StatementRow{Entry: entry, Balance: running})
	}
	statement.Closing = running
	return statement, nil
}

// TrialBalance builds the trial balance for a window: opening balances
// from before the window start plus movement inside it.
func (b *Balances) TrialBalance(ctx context.Context, start, end time.Time) (reports.TrialBalance, error) {
	accounts, err := b.repo.AccountBalances(ctx, start, end)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return reports.BuildTrialBalance(accounts), nil
}

// BalanceSheet builds the balance sheet as of a date. Every entry up to
// and including the date contributes.
func (b *Balances) BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error) {
	accounts, err := b.repo.AccountBalances(ctx, time.Time{}, asOf)
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return reports.BuildBalanceSheet(accounts), nil
}

// ProfitAndLoss builds the income statement for a window. Only movement
// inside the window contributes; openings are ignored.
func (b *Balances) ProfitAndLoss(ctx context.Context, start, end time.Time) (reports.ProfitAndLoss, error) {
	accounts, err := b.repo.AccountBalances(ctx, start, end)
	if err != nil {
		return reports.ProfitAndLoss{}, err
	}
	return reports.BuildProfitAndLoss(accounts), nil
}

// Accounts lists the active chart of accounts.
func (b *Balances) Accounts(ctx context.Context) ([]Account, error) {
	return b.repo.ListAccounts(ctx)
}

// EntriesByReference returns the posted entries for one reference key.
func (b *Balances) EntriesByReference(ctx context.Context, ref ReferenceType, refID int64) ([]Entry, error) {
	return b.repo.EntriesByReference(ctx, ref, refID)
}
