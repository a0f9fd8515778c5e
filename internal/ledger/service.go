package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LockPort serialises postings for one reference key and fences whole-ledger
// rebuilds against concurrent document postings.
type LockPort interface {
	Acquire(ctx context.Context, refType string, refID int64) (func(), error)
	AcquireRebuild(ctx context.Context) (func(), error)
}

// Config carries posting configuration injected at construction.
type Config struct {
	// CompanyStateCode is the issuing company's GST registration state,
	// used to split tax into intra- or inter-state components.
	CompanyStateCode string
}

// Service is the posting engine. Every posting is an idempotent replace:
// prior entries for the reference key are removed and the new balanced set
// written in the same transaction.
type Service struct {
	repo     RepositoryPort
	registry *Registry
	docs     documents.Repository
	cfg      Config
	audit    AuditPort
	locks    LockPort
	now      func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, registry *Registry, docs documents.Repository, cfg Config) *Service {
	return &Service{repo: repo, registry: registry, docs: docs, cfg: cfg, now: time.Now}
}

// SetAudit injects the audit sink. Nil disables audit records.
func (s *Service) SetAudit(audit AuditPort) {
	s.audit = audit
}

// SetLocks injects per-reference-key locking. Nil relies on the caller to
// serialise edits of one document.
func (s *Service) SetLocks(locks LockPort) {
	s.locks = locks
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// post runs one delete-then-insert posting for a reference key. build
// returns the candidate lines; an empty set with a reason records a skip.
func (s *Service) post(ctx context.Context, ref ReferenceType, refID int64, date time.Time, actorID *int64,
	build func(context.Context, TxRepository) ([]Line, string, error)) (PostingResult, error) {

	result := PostingResult{ReferenceType: ref, ReferenceID: refID}
	if refID == 0 {
		return result, fmt.Errorf("%w: missing %s id", ErrInvalidReference, ref)
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, string(ref), refID)
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return result, ErrPostingLocked
			}
			return result, err
		}
		defer release()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.replace(ctx, tx, ref, refID, date, actorID, build)
		return err
	})
	if err != nil {
		return PostingResult{ReferenceType: ref, ReferenceID: refID}, err
	}

	s.recordAudit(ctx, "ledger.post", ref, refID, actorID, map[string]any{
		"entries": result.Entries,
		"skipped": result.Skipped,
	})
	return result, nil
}

// replace performs the delete-then-insert inside an open transaction. The
// rebuild job calls it directly so a whole rebuild shares one transaction.
func (s *Service) replace(ctx context.Context, tx TxRepository, ref ReferenceType, refID int64, date time.Time, actorID *int64,
	build func(context.Context, TxRepository) ([]Line, string, error)) (PostingResult, error) {

	result := PostingResult{ReferenceType: ref, ReferenceID: refID}
	if _, err := tx.DeleteByReference(ctx, ref, refID); err != nil {
		return result, err
	}
	lines, reason, err := build(ctx, tx)
	if err != nil {
		return result, err
	}
	if len(lines) == 0 {
		result.Skipped = true
		result.Reason = reason
		return result, nil
	}
	if err := ValidateLines(lines); err != nil {
		return result, err
	}
	created, err := tx.InsertEntries(ctx, date, ref, refID, lines, actorID)
	if err != nil {
		return result, err
	}
	result.Entries = created
	return result, nil
}

// PostOrder posts a sales order: debit Receivable for the gross total,
// credit Sales for the taxable amount and the output tax accounts for each
// nonzero component. Cancelled orders post nothing.
func (s *Service) PostOrder(ctx context.Context, order documents.Order, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefOrder, order.ID, order.OrderDate, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		return s.orderLines(ctx, tx, order)
	})
}

func (s *Service) orderLines(ctx context.Context, tx TxRepository, order documents.Order) ([]Line, string, error) {
	if strings.EqualFold(order.Status, documents.OrderStatusCancelled) {
		return nil, "order cancelled", nil
	}
	if order.TotalAmount < 0 || order.TaxableAmount < 0 || order.CGSTAmount < 0 || order.SGSTAmount < 0 || order.IGSTAmount < 0 {
		return nil, "", fmt.Errorf("%w: order %s has negative amounts", ErrInvalidAmount, order.Number)
	}
	if math.Abs(order.TaxableAmount+order.CGSTAmount+order.SGSTAmount+order.IGSTAmount-order.TotalAmount) > balanceTolerance {
		return nil, "", fmt.Errorf("%w: order %s totals do not add up", ErrInvalidAmount, order.Number)
	}
	if order.TotalAmount == 0 {
		return nil, "zero amount", nil
	}

	receivable, err := s.registry.Receivable(ctx, tx)
	if err != nil {
		return nil, "", err
	}
	sales, err := s.registry.Sales(ctx, tx)
	if err != nil {
		return nil, "", err
	}

	customer := order.CustomerName
	if customer == "" {
		customer = "Customer"
	}
	desc := fmt.Sprintf("Sale %s to %s", order.Number, customer)

	lines := []Line{
		{AccountID: receivable.ID, AccountHead: receivable.Name, Debit: order.TotalAmount, Description: desc},
	}
	if order.TaxableAmount > 0 {
		lines = append(lines, Line{AccountID: sales.ID, AccountHead: sales.Name, Credit: order.TaxableAmount, Description: desc})
	}
	taxes := []struct {
		amount  float64
		resolve func(context.Context, TxRepository) (Account, error)
		suffix  string
	}{
		{order.CGSTAmount, s.registry.OutputCGST, "CGST"},
		{order.SGSTAmount, s.registry.OutputSGST, "SGST"},
		{order.IGSTAmount, s.registry.OutputIGST, "IGST"},
	}
	for _, t := range taxes {
		if t.amount <= 0 {
			continue
		}
		account, err := t.resolve(ctx, tx)
		if err != nil {
			return nil, "", err
		}
		lines = append(lines, Line{AccountID: account.ID, AccountHead: account.Name, Credit: t.amount, Description: desc + " - " + t.suffix})
	}
	return lines, "", nil
}

// PostPayment posts a customer receipt: debit cash or bank by payment mode,
// credit Receivable. Only cleared payments post.
func (s *Service) PostPayment(ctx context.Context, payment documents.Payment, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefPayment, payment.ID, payment.PaymentDate, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		return s.paymentLines(ctx, tx, payment)
	})
}

func (s *Service) paymentLines(ctx context.Context, tx TxRepository, payment documents.Payment) ([]Line, string, error) {
	if !strings.EqualFold(payment.Status, documents.PaymentStatusCleared) {
		return nil, "payment not cleared", nil
	}
	if payment.Amount < 0 {
		return nil, "", fmt.Errorf("%w: payment %d has negative amount", ErrInvalidAmount, payment.ID)
	}
	if payment.Amount == 0 {
		return nil, "zero amount", nil
	}

	debitAccount, err := s.registry.PaymentAccount(ctx, tx, payment.PaymentMode)
	if err != nil {
		return nil, "", err
	}
	receivable, err := s.registry.Receivable(ctx, tx)
	if err != nil {
		return nil, "", err
	}

	customer := payment.CustomerName
	if customer == "" {
		customer = "Customer"
	}
	desc := strings.TrimSpace(fmt.Sprintf("Payment received from %s for %s", customer, payment.OrderNumber))

	return []Line{
		{AccountID: debitAccount.ID, AccountHead: debitAccount.Name, Debit: payment.Amount, Description: desc},
		{AccountID: receivable.ID, AccountHead: receivable.Name, Credit: payment.Amount, Description: desc},
	}, "", nil
}

// PostExpense posts an operating expense: debit the resolved expense
// account for the gross amount, credit cash or bank. Expenses without a
// resolved account or with a non-positive amount post nothing.
func (s *Service) PostExpense(ctx context.Context, expense documents.Expense, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefExpense, expense.ID, expense.ExpenseDate, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		return s.expenseLines(ctx, tx, expense)
	})
}

func (s *Service) expenseLines(ctx context.Context, tx TxRepository, expense documents.Expense) ([]Line, string, error) {
	if expense.TotalAmount < 0 {
		return nil, "", fmt.Errorf("%w: expense %s has negative amount", ErrInvalidAmount, expense.Number)
	}
	if expense.TotalAmount == 0 {
		return nil, "zero amount", nil
	}
	if expense.AccountID == nil || *expense.AccountID == 0 {
		return nil, "no expense account", nil
	}

	// A dangling account id is data corruption, not a policy skip.
	expenseAccount, err := tx.GetAccount(ctx, *expense.AccountID)
	if err != nil {
		return nil, "", err
	}
	paymentAccount, err := s.registry.PaymentAccount(ctx, tx, expense.PaymentMode)
	if err != nil {
		return nil, "", err
	}

	subject := expense.Description
	if subject == "" {
		subject = expense.VendorName
	}
	if subject == "" {
		subject = expense.Number
	}

	return []Line{
		{AccountID: expenseAccount.ID, AccountHead: expenseAccount.Name, Debit: expense.TotalAmount, Description: "Expense: " + subject},
		{AccountID: paymentAccount.ID, AccountHead: paymentAccount.Name, Credit: expense.TotalAmount, Description: "Payment for: " + subject},
	}, "", nil
}

// PostVendorBill posts an approved purchase bill: debit Purchases for the
// subtotal and the input tax accounts per the GSTIN split, credit the
// vendor's AP sub-account for the gross total.
func (s *Service) PostVendorBill(ctx context.Context, bill documents.VendorBill, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefVendorBill, bill.ID, bill.BillDate, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		return s.vendorBillLines(ctx, tx, bill)
	})
}

func (s *Service) vendorBillLines(ctx context.Context, tx TxRepository, bill documents.VendorBill) ([]Line, string, error) {
	if !strings.EqualFold(bill.ApprovalStatus, documents.BillApproved) {
		return nil, "bill not approved", nil
	}
	if bill.Subtotal < 0 || bill.TaxAmount < 0 || bill.TotalAmount < 0 {
		return nil, "", fmt.Errorf("%w: vendor bill %s has negative amounts", ErrInvalidAmount, bill.Number)
	}
	if math.Abs(bill.Subtotal+bill.TaxAmount-bill.TotalAmount) > balanceTolerance {
		return nil, "", fmt.Errorf("%w: vendor bill %s totals do not add up", ErrInvalidAmount, bill.Number)
	}
	if bill.TotalAmount == 0 {
		return nil, "zero amount", nil
	}

	purchases, err := s.registry.Purchases(ctx, tx)
	if err != nil {
		return nil, "", err
	}
	apAccount, err := s.registry.VendorPayable(ctx, tx, bill.VendorName, bill.VendorCode)
	if err != nil {
		return nil, "", err
	}
	split := SplitGST(bill.VendorGSTIN, s.cfg.CompanyStateCode, bill.TaxAmount)

	var lines []Line
	if bill.Subtotal > 0 {
		lines = append(lines, Line{AccountID: purchases.ID, AccountHead: purchases.Name, Debit: bill.Subtotal,
			Description: fmt.Sprintf("Vendor bill %s - Purchases", bill.Number)})
	}
	taxes := []struct {
		amount  float64
		resolve func(context.Context, TxRepository) (Account, error)
		suffix  string
	}{
		{split.CGST, s.registry.InputCGST, "Input CGST"},
		{split.SGST, s.registry.InputSGST, "Input SGST"},
		{split.IGST, s.registry.InputIGST, "Input IGST"},
	}
	for _, t := range taxes {
		if t.amount <= 0 {
			continue
		}
		account, err := t.resolve(ctx, tx)
		if err != nil {
			return nil, "", err
		}
		lines = append(lines, Line{AccountID: account.ID, AccountHead: account.Name, Debit: t.amount,
			Description: fmt.Sprintf("Vendor bill %s - %s", bill.Number, t.suffix)})
	}
	lines = append(lines, Line{AccountID: apAccount.ID, AccountHead: apAccount.Name, Credit: bill.TotalAmount,
		Description: fmt.Sprintf("Vendor bill %s - Payable", bill.Number)})
	return lines, "", nil
}

// PostVendorPayment posts a cleared vendor payment: debit the vendor's AP
// sub-account, credit cash or bank by payment mode.
func (s *Service) PostVendorPayment(ctx context.Context, vp documents.VendorPayment, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefVendorPayment, vp.ID, vp.PaymentDate, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		return s.vendorPaymentLines(ctx, tx, vp)
	})
}

func (s *Service) vendorPaymentLines(ctx context.Context, tx TxRepository, vp documents.VendorPayment) ([]Line, string, error) {
	if !strings.EqualFold(vp.Status, documents.PaymentStatusCleared) {
		return nil, "payment not cleared", nil
	}
	if vp.Amount < 0 {
		return nil, "", fmt.Errorf("%w: vendor payment %d has negative amount", ErrInvalidAmount, vp.ID)
	}
	if vp.Amount == 0 {
		return nil, "zero amount", nil
	}
	if vp.BillID == 0 || vp.VendorName == "" {
		return nil, "no vendor bill", nil
	}

	apAccount, err := s.registry.VendorPayable(ctx, tx, vp.VendorName, vp.VendorCode)
	if err != nil {
		return nil, "", err
	}
	creditAccount, err := s.registry.PaymentAccount(ctx, tx, vp.PaymentMode)
	if err != nil {
		return nil, "", err
	}

	desc := fmt.Sprintf("Vendor bill %s - Payment", vp.BillNumber)
	return []Line{
		{AccountID: apAccount.ID, AccountHead: apAccount.Name, Debit: vp.Amount, Description: desc},
		{AccountID: creditAccount.ID, AccountHead: creditAccount.Name, Credit: vp.Amount, Description: desc},
	}, "", nil
}

// Threshold below which an opening balance is treated as zero.
const openingBalanceEpsilon = 0.0001

// PostOpeningBalance posts a natural-direction opening amount for one
// account against the Opening Balance Equity offset as of the cutoff date.
// A zero amount clears any prior opening posting and writes nothing new.
func (s *Service) PostOpeningBalance(ctx context.Context, accountID int64, amount float64, asOf time.Time, actorID *int64) (PostingResult, error) {
	return s.post(ctx, RefOpeningBalance, accountID, asOf, actorID, func(ctx context.Context, tx TxRepository) ([]Line, string, error) {
		if amount < 0 {
			return nil, "", fmt.Errorf("%w: opening balance must be a natural-direction amount", ErrInvalidAmount)
		}
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return nil, "", err
		}
		if math.Abs(amount) < openingBalanceEpsilon {
			return nil, "zero amount", nil
		}
		offset, err := s.registry.OpeningBalanceOffset(ctx, tx)
		if err != nil {
			return nil, "", err
		}

		desc := fmt.Sprintf("Opening balance for %s", account.Name)
		if account.RootType.DebitNatural() {
			return []Line{
				{AccountID: account.ID, AccountHead: account.Name, Debit: amount, Description: desc},
				{AccountID: offset.ID, AccountHead: offset.Name, Credit: amount, Description: desc},
			}, "", nil
		}
		return []Line{
			{AccountID: account.ID, AccountHead: account.Name, Credit: amount, Description: desc},
			{AccountID: offset.ID, AccountHead: offset.Name, Debit: amount, Description: desc},
		}, "", nil
	})
}

// DeletePosting removes every entry for one reference key. Document
// deletion flows call this so the ledger never keeps orphaned lines.
func (s *Service) DeletePosting(ctx context.Context, ref ReferenceType, refID int64, actorID *int64) error {
	if refID == 0 {
		return fmt.Errorf("%w: missing %s id", ErrInvalidReference, ref)
	}
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deleted, err = tx.DeleteByReference(ctx, ref, refID)
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "ledger.delete", ref, refID, actorID, map[string]any{"deleted": deleted})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, ref ReferenceType, refID int64, actorID *int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actor int64
	if actorID != nil {
		actor = *actorID
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["reference_type"] = string(ref)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: fmt.Sprintf("%s:%d", ref, refID),
		Meta:     meta,
		At:       s.now(),
	})
}
