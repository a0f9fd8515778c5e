// Package reports holds pure aggregation builders for the ledger reports.
// They never touch storage; the repository feeds them AccountBalance rows.
package reports

// AccountBalance is one account's aggregated movement for a report window:
// signed opening before the window, debit and credit sums inside it.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	RootType  string
	Opening   float64
	Debit     float64
	Credit    float64
}

// Closing computes the signed closing balance (debit minus credit).
func (a AccountBalance) Closing() float64 {
	return a.Opening + a.Debit - a.Credit
}

// TrialBalanceRow is one account's line in the trial balance.
type TrialBalanceRow struct {
	AccountID     int64
	Code          string
	Name          string
	RootType      string
	Opening       float64
	Debit         float64
	Credit        float64
	Closing       float64
	DebitBalance  float64
	CreditBalance float64
}

// TrialBalance is the full report. TotalDebit and TotalCredit must match
// for any ledger produced solely by the posting engine.
type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  float64
	TotalCredit float64
}

// BuildTrialBalance converts per-account balances into trial balance rows.
// A non-negative closing lands in the debit column, a negative closing in
// the credit column as its absolute value.
func BuildTrialBalance(accounts []AccountBalance) TrialBalance {
	var tb TrialBalance
	for _, acc := range accounts {
		closing := acc.Closing()
		row := TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			RootType:  acc.RootType,
			Opening:   acc.Opening,
			Debit:     acc.Debit,
			Credit:    acc.Credit,
			Closing:   closing,
		}
		if closing >= 0 {
			row.DebitBalance = closing
		} else {
			row.CreditBalance = -closing
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit += row.DebitBalance
		tb.TotalCredit += row.CreditBalance
	}
	return tb
}
