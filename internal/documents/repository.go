package documents

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads source documents for posting and rebuild.
type Repository interface {
	OrdersInRange(ctx context.Context, start, end time.Time) ([]Order, error)
	PaymentsInRange(ctx context.Context, start, end time.Time) ([]Payment, error)
	ExpensesInRange(ctx context.Context, start, end time.Time) ([]Expense, error)
	VendorBillsInRange(ctx context.Context, start, end time.Time) ([]VendorBill, error)
	VendorPaymentsInRange(ctx context.Context, start, end time.Time) ([]VendorPayment, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository over the shared pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) OrdersInRange(ctx context.Context, start, end time.Time) ([]Order, error) {
	rows, err := r.db.Query(ctx, `SELECT o.id, o.order_number, COALESCE(d.business_name, ''), o.order_date, o.status,
COALESCE(o.taxable_amount, 0), COALESCE(o.cgst_amount, 0), COALESCE(o.sgst_amount, 0), COALESCE(o.igst_amount, 0), COALESCE(o.total_amount, 0)
FROM orders o LEFT JOIN distributors d ON d.id = o.distributor_id
WHERE o.order_date >= $1 AND o.order_date <= $2 ORDER BY o.order_date, o.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Number, &o.CustomerName, &o.OrderDate, &o.Status,
			&o.TaxableAmount, &o.CGSTAmount, &o.SGSTAmount, &o.IGSTAmount, &o.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repository) PaymentsInRange(ctx context.Context, start, end time.Time) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT p.id, p.order_id, COALESCE(o.order_number, ''), COALESCE(d.business_name, ''),
p.payment_date, COALESCE(p.payment_mode, ''), COALESCE(p.status, ''), COALESCE(p.amount, 0)
FROM payments p
LEFT JOIN orders o ON o.id = p.order_id
LEFT JOIN distributors d ON d.id = o.distributor_id
WHERE p.payment_date >= $1 AND p.payment_date <= $2 ORDER BY p.payment_date, p.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.OrderNumber, &p.CustomerName,
			&p.PaymentDate, &p.PaymentMode, &p.Status, &p.Amount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) ExpensesInRange(ctx context.Context, start, end time.Time) ([]Expense, error) {
	rows, err := r.db.Query(ctx, `SELECT id, expense_number, expense_date, COALESCE(payment_mode, ''),
COALESCE(description, ''), COALESCE(vendor_name, ''), account_id, COALESCE(total_amount, 0)
FROM expenses WHERE expense_date >= $1 AND expense_date <= $2 ORDER BY expense_date, id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Number, &e.ExpenseDate, &e.PaymentMode,
			&e.Description, &e.VendorName, &e.AccountID, &e.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) VendorBillsInRange(ctx context.Context, start, end time.Time) ([]VendorBill, error) {
	rows, err := r.db.Query(ctx, `SELECT b.id, b.bill_number, b.vendor_id, COALESCE(v.business_name, ''),
COALESCE(v.code, ''), COALESCE(v.gstin, ''), b.bill_date, COALESCE(b.approval_status, ''),
COALESCE(b.subtotal, 0), COALESCE(b.tax_amount, 0), COALESCE(b.total_amount, 0)
FROM vendor_bills b LEFT JOIN vendors v ON v.id = b.vendor_id
WHERE b.bill_date >= $1 AND b.bill_date <= $2 ORDER BY b.bill_date, b.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorBill
	for rows.Next() {
		var b VendorBill
		if err := rows.Scan(&b.ID, &b.Number, &b.VendorID, &b.VendorName,
			&b.VendorCode, &b.VendorGSTIN, &b.BillDate, &b.ApprovalStatus,
			&b.Subtotal, &b.TaxAmount, &b.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) VendorPaymentsInRange(ctx context.Context, start, end time.Time) ([]VendorPayment, error) {
	rows, err := r.db.Query(ctx, `SELECT vp.id, vp.vendor_bill_id, COALESCE(b.bill_number, ''), b.vendor_id,
COALESCE(v.business_name, ''), COALESCE(v.code, ''), vp.payment_date, COALESCE(vp.payment_mode, ''),
COALESCE(vp.status, ''), COALESCE(vp.amount, 0)
FROM vendor_payments vp
LEFT JOIN vendor_bills b ON b.id = vp.vendor_bill_id
LEFT JOIN vendors v ON v.id = b.vendor_id
WHERE vp.payment_date >= $1 AND vp.payment_date <= $2 ORDER BY vp.payment_date, vp.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorPayment
	for rows.Next() {
		var vp VendorPayment
		if err := rows.Scan(&vp.ID, &vp.BillID, &vp.BillNumber, &vp.VendorID,
			&vp.VendorName, &vp.VendorCode, &vp.PaymentDate, &vp.PaymentMode,
			&vp.Status, &vp.Amount); err != nil {
			return nil, err
		}
		out = append(out, vp)
	}
	return out, rows.Err()
}
