package reports

// ProfitAndLossAccount represents an income or expense account summary.
type ProfitAndLossAccount struct {
	AccountID int64
	Code      string
	Name      string
	Amount    float64
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string
	Accounts []ProfitAndLossAccount
	Total    float64
}

// ProfitAndLoss contains the structured output for the report. Only the
// period movement counts; openings are ignored for income and expenses.
type ProfitAndLoss struct {
	Income    ProfitAndLossSection
	Expense   ProfitAndLossSection
	NetProfit float64
}

// BuildProfitAndLoss aggregates period movement into income and expense sections.
func BuildProfitAndLoss(accounts []AccountBalance) ProfitAndLoss {
	income := ProfitAndLossSection{Label: "Income"}
	expense := ProfitAndLossSection{Label: "Expenses"}

	for _, acc := range accounts {
		switch acc.RootType {
		case "Income":
			row := ProfitAndLossAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Credit - acc.Debit}
			income.Accounts = append(income.Accounts, row)
			income.Total += row.Amount
		case "Expense":
			row := ProfitAndLossAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Debit - acc.Credit}
			expense.Accounts = append(expense.Accounts, row)
			expense.Total += row.Amount
		}
	}

	return ProfitAndLoss{
		Income:    income,
		Expense:   expense,
		NetProfit: income.Total - expense.Total,
	}
}
