package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// RootType enumerates CoA categories.
type RootType string

const (
	RootTypeAsset     RootType = "Asset"
	RootTypeLiability RootType = "Liability"
	RootTypeEquity    RootType = "Equity"
	RootTypeIncome    RootType = "Income"
	RootTypeExpense   RootType = "Expense"
)

// DebitNatural reports whether the account's natural balance is debit minus credit.
func (t RootType) DebitNatural() bool {
	return t == RootTypeAsset || t == RootTypeExpense
}

// Valid reports whether the root type is one of the five known categories.
func (t RootType) Valid() bool {
	switch t {
	case RootTypeAsset, RootTypeLiability, RootTypeEquity, RootTypeIncome, RootTypeExpense:
		return true
	}
	return false
}

// ReferenceType tags a ledger entry with its source document kind.
type ReferenceType string

const (
	RefOrder          ReferenceType = "order"
	RefPayment        ReferenceType = "payment"
	RefExpense        ReferenceType = "expense"
	RefVendorBill     ReferenceType = "vendor_bill"
	RefVendorPayment  ReferenceType = "vendor_payment"
	RefOpeningBalance ReferenceType = "opening_balance"
)

// RebuildableKinds lists the reference types the rebuild job may touch.
// Opening balances and manual/unknown tags are never included.
var RebuildableKinds = []ReferenceType{RefOrder, RefPayment, RefExpense, RefVendorBill, RefVendorPayment}

// Rebuildable reports whether the rebuild job is allowed to delete and
// re-create entries of this kind.
func (t ReferenceType) Rebuildable() bool {
	for _, k := range RebuildableKinds {
		if t == k {
			return true
		}
	}
	return false
}

// Account models a chart of accounts node.
type Account struct {
	ID          int64
	Code        string
	Name        string
	RootType    RootType
	AccountType string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountSpec describes an account to resolve or create.
type AccountSpec struct {
	Name        string
	RootType    RootType
	AccountType string
	Code        string
	Description string
}

// Entry is one ledger line. Exactly one of Debit/Credit is nonzero.
type Entry struct {
	ID            int64
	EntryDate     time.Time
	ReferenceType ReferenceType
	ReferenceID   int64
	AccountID     int64
	AccountHead   string
	Debit         float64
	Credit        float64
	Description   string
	CreatedBy     *int64
	CreatedAt     time.Time
}

// Line is a journal line about to be written for a reference key.
type Line struct {
	AccountID   int64
	AccountHead string
	Debit       float64
	Credit      float64
	Description string
}

// PostingResult reports what a posting function did for one reference key.
// Skipped postings are not errors; the prior entries for that key are
// still cleared.
type PostingResult struct {
	ReferenceType ReferenceType
	ReferenceID   int64
	Entries       int
	Skipped       bool
	Reason        string
}

// Tolerance for comparing debit and credit totals of one reference key.
const balanceTolerance = 0.01

var (
	// ErrUnbalanced indicates a line set whose debits and credits do not match.
	ErrUnbalanced = errors.New("ledger: entries must balance")
	// ErrAccountNotFound indicates a document references a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountConflict indicates a concurrent create for the same name.
	ErrAccountConflict = errors.New("ledger: account already exists")
	// ErrInvalidAmount indicates a negative or malformed amount.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInvalidReference indicates a missing or unknown reference key.
	ErrInvalidReference = errors.New("ledger: invalid reference")
	// ErrPostingLocked indicates another posting holds the reference key lock.
	ErrPostingLocked = errors.New("ledger: reference key locked by another posting")
)

// ValidateLines enforces the balance invariant on a candidate line set
// before anything is written. An empty set is valid: it means the posting
// was skipped by policy.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	var debit, credit float64
	for i, line := range lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account: %w", i, ErrAccountNotFound)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount: %w", i, ErrInvalidAmount)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit: %w", i, ErrInvalidAmount)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("ledger: line %d has no amount: %w", i, ErrInvalidAmount)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > balanceTolerance {
		return fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, debit, credit)
	}
	return nil
}
