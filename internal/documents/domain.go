// Package documents exposes the source documents the ledger posts from:
// sales orders, customer receipts, operating expenses, vendor bills and
// vendor payments. The ledger never mutates these records; it only reads
// their date, status and amount fields.
package documents

import "time"

// Order statuses relevant to posting.
const (
	OrderStatusCancelled = "cancelled"
)

// Payment and vendor payment statuses relevant to posting.
const (
	PaymentStatusCleared = "cleared"
)

// Vendor bill approval statuses relevant to posting.
const (
	BillApproved = "approved"
)

// Order is a confirmed or cancelled sales order.
type Order struct {
	ID            int64
	Number        string
	CustomerName  string
	OrderDate     time.Time
	Status        string
	TaxableAmount float64
	CGSTAmount    float64
	SGSTAmount    float64
	IGSTAmount    float64
	TotalAmount   float64
}

// Payment is a customer receipt against an order.
type Payment struct {
	ID           int64
	OrderID      int64
	OrderNumber  string
	CustomerName string
	PaymentDate  time.Time
	PaymentMode  string
	Status       string
	Amount       float64
}

// Expense is an operating expense paid out of cash or bank.
type Expense struct {
	ID          int64
	Number      string
	ExpenseDate time.Time
	PaymentMode string
	Description string
	VendorName  string
	AccountID   *int64
	TotalAmount float64
}

// VendorBill is a purchase bill; tax fields are split by the vendor GSTIN.
type VendorBill struct {
	ID             int64
	Number         string
	VendorID       *int64
	VendorName     string
	VendorCode     string
	VendorGSTIN    string
	BillDate       time.Time
	ApprovalStatus string
	Subtotal       float64
	TaxAmount      float64
	TotalAmount    float64
}

// VendorPayment settles a vendor bill.
type VendorPayment struct {
	ID          int64
	BillID      int64
	BillNumber  string
	VendorID    *int64
	VendorName  string
	VendorCode  string
	PaymentDate time.Time
	PaymentMode string
	Status      string
	Amount      float64
}
