package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Settings carries the operator-configured system account overrides. A nil
// field means no override; the registry falls back to the canonical account
// for that role, creating it on first use.
type Settings struct {
	CashAccountID       *int64
	BankAccountID       *int64
	ReceivableAccountID *int64
	PayableAccountID    *int64
}

// Registry resolves and auto-vivifies chart of accounts nodes. All lookups
// run inside the caller's transaction so freshly created accounts are
// visible to the rest of the same posting.
type Registry struct {
	settings Settings
}

// NewRegistry constructs a Registry with the injected overrides.
func NewRegistry(settings Settings) *Registry {
	return &Registry{settings: settings}
}

// ResolveOrCreate finds an account by case-insensitive name or creates it.
// Existing accounts only have empty fields backfilled; a populated root
// type, subtype, code or description is never overwritten.
func (g *Registry) ResolveOrCreate(ctx context.Context, tx TxRepository, spec AccountSpec) (Account, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Account{}, errors.New("ledger: account name required")
	}
	spec.Name = name

	existing, found, err := tx.FindAccountByName(ctx, name)
	if err != nil {
		return Account{}, err
	}
	if found {
		if needsBackfill(existing, spec) {
			if err := tx.BackfillAccount(ctx, existing.ID, spec.AccountType, spec.Code, spec.Description); err != nil {
				return Account{}, err
			}
			return tx.GetAccount(ctx, existing.ID)
		}
		return existing, nil
	}

	account, err := tx.InsertAccount(ctx, spec)
	if err != nil {
		// Lost a create race; the winner's row is what we want.
		if errors.Is(err, ErrAccountConflict) {
			again, found, ferr := tx.FindAccountByName(ctx, name)
			if ferr != nil {
				return Account{}, ferr
			}
			if found {
				return again, nil
			}
		}
		return Account{}, err
	}
	return account, nil
}

func needsBackfill(existing Account, spec AccountSpec) bool {
	if existing.AccountType == "" && spec.AccountType != "" {
		return true
	}
	if existing.Code == "" && spec.Code != "" {
		return true
	}
	if existing.Description == "" && spec.Description != "" {
		return true
	}
	return false
}

func (g *Registry) resolveConfigured(ctx context.Context, tx TxRepository, override *int64, fallback AccountSpec) (Account, error) {
	if override != nil && *override != 0 {
		account, err := tx.GetAccount(ctx, *override)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return Account{}, err
		}
		// Stale override; fall through to the canonical account.
	}
	return g.ResolveOrCreate(ctx, tx, fallback)
}

// Cash resolves the default cash account.
func (g *Registry) Cash(ctx context.Context, tx TxRepository) (Account, error) {
	return g.resolveConfigured(ctx, tx, g.settings.CashAccountID,
		AccountSpec{Name: "Cash", RootType: RootTypeAsset, AccountType: "Cash"})
}

// Bank resolves the default bank account.
func (g *Registry) Bank(ctx context.Context, tx TxRepository) (Account, error) {
	return g.resolveConfigured(ctx, tx, g.settings.BankAccountID,
		AccountSpec{Name: "Bank", RootType: RootTypeAsset, AccountType: "Bank"})
}

// Receivable resolves the accounts receivable control account.
func (g *Registry) Receivable(ctx context.Context, tx TxRepository) (Account, error) {
	return g.resolveConfigured(ctx, tx, g.settings.ReceivableAccountID,
		AccountSpec{Name: "Accounts Receivable", RootType: RootTypeAsset, AccountType: "Receivable"})
}

// Payable resolves the generic accounts payable account, used when a bill
// has no vendor attached.
func (g *Registry) Payable(ctx context.Context, tx TxRepository) (Account, error) {
	return g.resolveConfigured(ctx, tx, g.settings.PayableAccountID,
		AccountSpec{Name: "Accounts Payable", RootType: RootTypeLiability, AccountType: "Payable"})
}

// VendorPayable resolves the per-vendor AP sub-account with a deterministic
// name and code derived from the vendor.
func (g *Registry) VendorPayable(ctx context.Context, tx TxRepository, vendorName, vendorCode string) (Account, error) {
	if strings.TrimSpace(vendorName) == "" {
		return g.Payable(ctx, tx)
	}
	spec := AccountSpec{
		Name:        fmt.Sprintf("Accounts Payable - %s", vendorName),
		RootType:    RootTypeLiability,
		AccountType: "Payable",
		Description: "Current Liabilities",
	}
	if vendorCode != "" {
		spec.Code = fmt.Sprintf("AP-%s", vendorCode)
	}
	return g.ResolveOrCreate(ctx, tx, spec)
}

// PaymentAccount maps a payment mode onto cash or bank. Only "cash" is
// cash; upi, cheque, card and bank transfers all settle through Bank.
func (g *Registry) PaymentAccount(ctx context.Context, tx TxRepository, mode string) (Account, error) {
	if strings.ToLower(strings.TrimSpace(mode)) == "cash" {
		return g.Cash(ctx, tx)
	}
	return g.Bank(ctx, tx)
}

// Sales resolves the sales income account.
func (g *Registry) Sales(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Sales", RootType: RootTypeIncome, AccountType: "Sales"})
}

// Purchases resolves the purchases expense account.
func (g *Registry) Purchases(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Purchases", RootType: RootTypeExpense, AccountType: "Purchases"})
}

// OutputCGST, OutputSGST and OutputIGST are tax liabilities collected on sales.
func (g *Registry) OutputCGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Output CGST", RootType: RootTypeLiability, AccountType: "Tax"})
}

func (g *Registry) OutputSGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Output SGST", RootType: RootTypeLiability, AccountType: "Tax"})
}

func (g *Registry) OutputIGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Output IGST", RootType: RootTypeLiability, AccountType: "Tax"})
}

// InputCGST, InputSGST and InputIGST are tax credits claimable on purchases.
func (g *Registry) InputCGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Input CGST", RootType: RootTypeAsset, AccountType: "Tax"})
}

func (g *Registry) InputSGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Input SGST", RootType: RootTypeAsset, AccountType: "Tax"})
}

func (g *Registry) InputIGST(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Input IGST", RootType: RootTypeAsset, AccountType: "Tax"})
}

// OpeningBalanceOffset resolves the equity offset used by opening balance postings.
func (g *Registry) OpeningBalanceOffset(ctx context.Context, tx TxRepository) (Account, error) {
	return g.ResolveOrCreate(ctx, tx, AccountSpec{Name: "Opening Balance Equity", RootType: RootTypeEquity, AccountType: "Equity"})
}
