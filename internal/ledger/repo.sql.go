package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/reports"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists accounts and ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the mutations available inside one posting or
// rebuild transaction.
type TxRepository interface {
	FindAccountByName(ctx context.Context, name string) (Account, bool, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, spec AccountSpec) (Account, error)
	BackfillAccount(ctx context.Context, id int64, accountType, code, description string) error
	InsertEntries(ctx context.Context, date time.Time, ref ReferenceType, refID int64, lines []Line, createdBy *int64) (int, error)
	DeleteByReference(ctx context.Context, ref ReferenceType, refID int64) (int64, error)
	DeleteEntriesInRange(ctx context.Context, start, end time.Time, kinds []ReferenceType) (int64, error)
}

// WithTx executes fn within a repeatable-read transaction. Any error rolls
// the whole unit back; postings are never half-applied.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const accountColumns = `id, COALESCE(code, ''), name, root_type, COALESCE(account_type, ''), COALESCE(description, ''), is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.RootType, &a.AccountType, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) FindAccountByName(ctx context.Context, name string) (Account, bool, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(name) = lower($1)`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return account, true, nil
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, spec AccountSpec) (Account, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, root_type, account_type, description, is_active)
VALUES (NULLIF($1, ''), $2, $3, NULLIF($4, ''), NULLIF($5, ''), TRUE)
RETURNING `+accountColumns, spec.Code, spec.Name, spec.RootType, spec.AccountType, spec.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrAccountConflict
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) BackfillAccount(ctx context.Context, id int64, accountType, code, description string) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET
account_type = COALESCE(account_type, NULLIF($2, '')),
code = COALESCE(code, NULLIF($3, '')),
description = COALESCE(description, NULLIF($4, '')),
updated_at = NOW()
WHERE id = $1`, id, accountType, code, description)
	return err
}

func (r *txRepository) InsertEntries(ctx context.Context, date time.Time, ref ReferenceType, refID int64, lines []Line, createdBy *int64) (int, error) {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (entry_date, reference_type, reference_id, account_id, account_head, debit, credit, description, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			date, ref, refID, line.AccountID, line.AccountHead, toNumeric(line.Debit), toNumeric(line.Credit), line.Description, nullIntPtr(createdBy)); err != nil {
			return 0, err
		}
	}
	return len(lines), nil
}

func (r *txRepository) DeleteByReference(ctx context.Context, ref ReferenceType, refID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE reference_type = $1 AND reference_id = $2`, ref, refID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) DeleteEntriesInRange(ctx context.Context, start, end time.Time, kinds []ReferenceType) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries
WHERE entry_date >= $1 AND entry_date <= $2 AND reference_type = ANY($3)`, start, end, refTypeStrings(kinds))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

const entryColumns = `id, entry_date, reference_type, reference_id, account_id, COALESCE(account_head, ''), debit, credit, COALESCE(description, ''), created_by, created_at`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EntryDate, &e.ReferenceType, &e.ReferenceID, &e.AccountID,
			&e.AccountHead, &e.Debit, &e.Credit, &e.Description, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntriesByReference lists the committed entries for one reference key.
func (r *Repository) EntriesByReference(ctx context.Context, ref ReferenceType, refID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE reference_type = $1 AND reference_id = $2 ORDER BY id`, ref, refID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// EntriesForAccount lists an account's entries within [start, end], ordered
// by entry date with insertion order breaking ties.
func (r *Repository) EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE account_id = $1 AND entry_date >= $2 AND entry_date <= $3 ORDER BY entry_date, id`, accountID, start, end)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// SignedSumBefore sums debit minus credit for an account strictly before cutoff.
func (r *Repository) SignedSumBefore(ctx context.Context, accountID int64, cutoff time.Time) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit), 0) FROM ledger_entries
WHERE account_id = $1 AND entry_date < $2`, accountID, cutoff).Scan(&sum)
	return sum, err
}

// SignedSumAsOf sums debit minus credit for an account up to and including cutoff.
// A nil cutoff sums the whole ledger for the account.
func (r *Repository) SignedSumAsOf(ctx context.Context, accountID int64, cutoff *time.Time) (float64, error) {
	var sum float64
	var err error
	if cutoff == nil {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit), 0) FROM ledger_entries
WHERE account_id = $1`, accountID).Scan(&sum)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit), 0) FROM ledger_entries
WHERE account_id = $1 AND entry_date <= $2`, accountID, *cutoff).Scan(&sum)
	}
	return sum, err
}

// GetAccount loads one account outside a transaction.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// ListAccounts returns active accounts ordered by root type then name.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE is_active ORDER BY root_type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.RootType, &a.AccountType, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountBalances aggregates one row per active account: signed opening
// before start, plus period debit and credit within [start, end].
func (r *Repository) AccountBalances(ctx context.Context, start, end time.Time) ([]reports.AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, COALESCE(a.code, ''), a.name, a.root_type,
COALESCE(o.signed, 0), COALESCE(p.debit, 0), COALESCE(p.credit, 0)
FROM accounts a
LEFT JOIN (
    SELECT account_id, SUM(debit - credit) AS signed FROM ledger_entries
    WHERE entry_date < $1 GROUP BY account_id
) o ON o.account_id = a.id
LEFT JOIN (
    SELECT account_id, SUM(debit) AS debit, SUM(credit) AS credit FROM ledger_entries
    WHERE entry_date >= $1 AND entry_date <= $2 GROUP BY account_id
) p ON p.account_id = a.id
WHERE a.is_active ORDER BY a.root_type, a.name`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reports.AccountBalance
	for rows.Next() {
		var b reports.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.RootType, &b.Opening, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LoadSettings reads the single system-account override record. A missing
// row yields empty settings; defaults are auto-vivified on demand.
func (r *Repository) LoadSettings(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT default_cash_account_id, default_bank_account_id,
default_receivable_account_id, default_payable_account_id FROM ledger_settings LIMIT 1`).
		Scan(&s.CashAccountID, &s.BankAccountID, &s.ReceivableAccountID, &s.PayableAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	return s, nil
}

// Helpers
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

func refTypeStrings(kinds []ReferenceType) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
