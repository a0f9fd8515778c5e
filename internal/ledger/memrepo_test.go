package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/ledger/reports"
)

// memRepo is an in-memory stand-in for the Postgres repository. WithTx
// snapshots state up front and restores it when fn fails, matching the
// rollback behaviour the SQL implementation gets for free.
type memRepo struct {
	accounts      map[int64]*Account
	entries       []Entry
	nextAccountID int64
	nextEntryID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: make(map[int64]*Account)}
}

func (r *memRepo) addAccount(name string, rootType RootType) *Account {
	r.nextAccountID++
	a := &Account{
		ID:       r.nextAccountID,
		Name:     name,
		RootType: rootType,
		IsActive: true,
	}
	r.accounts[a.ID] = a
	return a
}

func (r *memRepo) snapshot() (map[int64]*Account, []Entry) {
	accounts := make(map[int64]*Account, len(r.accounts))
	for id, a := range r.accounts {
		copied := *a
		accounts[id] = &copied
	}
	entries := append([]Entry(nil), r.entries...)
	return accounts, entries
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	accounts, entries := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.accounts = accounts
		r.entries = entries
		return err
	}
	return nil
}

func (r *memRepo) FindAccountByName(ctx context.Context, name string) (Account, bool, error) {
	for _, a := range r.accounts {
		if strings.EqualFold(a.Name, name) {
			return *a, true, nil
		}
	}
	return Account{}, false, nil
}

func (r *memRepo) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (r *memRepo) InsertAccount(ctx context.Context, spec AccountSpec) (Account, error) {
	if _, found, _ := r.FindAccountByName(ctx, spec.Name); found {
		return Account{}, ErrAccountConflict
	}
	r.nextAccountID++
	a := &Account{
		ID:          r.nextAccountID,
		Code:        spec.Code,
		Name:        spec.Name,
		RootType:    spec.RootType,
		AccountType: spec.AccountType,
		Description: spec.Description,
		IsActive:    true,
	}
	r.accounts[a.ID] = a
	return *a, nil
}

func (r *memRepo) BackfillAccount(ctx context.Context, id int64, accountType, code, description string) error {
	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if a.AccountType == "" {
		a.AccountType = accountType
	}
	if a.Code == "" {
		a.Code = code
	}
	if a.Description == "" {
		a.Description = description
	}
	return nil
}

func (r *memRepo) InsertEntries(ctx context.Context, date time.Time, ref ReferenceType, refID int64, lines []Line, createdBy *int64) (int, error) {
	for _, line := range lines {
		r.nextEntryID++
		r.entries = append(r.entries, Entry{
			ID:            r.nextEntryID,
			EntryDate:     date,
			ReferenceType: ref,
			ReferenceID:   refID,
			AccountID:     line.AccountID,
			AccountHead:   line.AccountHead,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   line.Description,
			CreatedBy:     createdBy,
		})
	}
	return len(lines), nil
}

func (r *memRepo) DeleteByReference(ctx context.Context, ref ReferenceType, refID int64) (int64, error) {
	var kept []Entry
	var deleted int64
	for _, e := range r.entries {
		if e.ReferenceType == ref && e.ReferenceID == refID {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *memRepo) inRange(e Entry, start, end time.Time, kinds []ReferenceType) bool {
	if e.EntryDate.Before(start) || e.EntryDate.After(end) {
		return false
	}
	for _, k := range kinds {
		if e.ReferenceType == k {
			return true
		}
	}
	return false
}

func (r *memRepo) DeleteEntriesInRange(ctx context.Context, start, end time.Time, kinds []ReferenceType) (int64, error) {
	var kept []Entry
	var deleted int64
	for _, e := range r.entries {
		if r.inRange(e, start, end, kinds) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *memRepo) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RootType != out[j].RootType {
			return out[i].RootType < out[j].RootType
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memRepo) EntriesByReference(ctx context.Context, ref ReferenceType, refID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.ReferenceType == ref && e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.AccountID == accountID && !e.EntryDate.Before(start) && !e.EntryDate.After(end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memRepo) SignedSumBefore(ctx context.Context, accountID int64, cutoff time.Time) (float64, error) {
	var sum float64
	for _, e := range r.entries {
		if e.AccountID == accountID && e.EntryDate.Before(cutoff) {
			sum += e.Debit - e.Credit
		}
	}
	return sum, nil
}

func (r *memRepo) SignedSumAsOf(ctx context.Context, accountID int64, cutoff *time.Time) (float64, error) {
	var sum float64
	for _, e := range r.entries {
		if e.AccountID != accountID {
			continue
		}
		if cutoff != nil && e.EntryDate.After(*cutoff) {
			continue
		}
		sum += e.Debit - e.Credit
	}
	return sum, nil
}

func (r *memRepo) AccountBalances(ctx context.Context, start, end time.Time) ([]reports.AccountBalance, error) {
	accounts, _ := r.ListAccounts(ctx)
	var out []reports.AccountBalance
	for _, a := range accounts {
		bal := reports.AccountBalance{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			RootType:  string(a.RootType),
		}
		for _, e := range r.entries {
			if e.AccountID != a.ID {
				continue
			}
			switch {
			case e.EntryDate.Before(start):
				bal.Opening += e.Debit - e.Credit
			case !e.EntryDate.After(end):
				bal.Debit += e.Debit
				bal.Credit += e.Credit
			}
		}
		out = append(out, bal)
	}
	return out, nil
}

// memDocs is an in-memory documents source for rebuild tests.
type memDocs struct {
	orders         []documents.Order
	payments       []documents.Payment
	expenses       []documents.Expense
	vendorBills    []documents.VendorBill
	vendorPayments []documents.VendorPayment
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (d *memDocs) OrdersInRange(ctx context.Context, start, end time.Time) ([]documents.Order, error) {
	var out []documents.Order
	for _, o := range d.orders {
		if within(o.OrderDate, start, end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (d *memDocs) PaymentsInRange(ctx context.Context, start, end time.Time) ([]documents.Payment, error) {
	var out []documents.Payment
	for _, p := range d.payments {
		if within(p.PaymentDate, start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *memDocs) ExpensesInRange(ctx context.Context, start, end time.Time) ([]documents.Expense, error) {
	var out []documents.Expense
	for _, e := range d.expenses {
		if within(e.ExpenseDate, start, end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memDocs) VendorBillsInRange(ctx context.Context, start, end time.Time) ([]documents.VendorBill, error) {
	var out []documents.VendorBill
	for _, b := range d.vendorBills {
		if within(b.BillDate, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (d *memDocs) VendorPaymentsInRange(ctx context.Context, start, end time.Time) ([]documents.VendorPayment, error) {
	var out []documents.VendorPayment
	for _, p := range d.vendorPayments {
		if within(p.PaymentDate, start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}
