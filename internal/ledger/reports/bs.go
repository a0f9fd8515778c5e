package reports

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	AccountID int64
	Code      string
	Name      string
	Balance   float64
}

// BalanceSheetSection contains the accounts and total for a classification.
type BalanceSheetSection struct {
	Label    string
	Accounts []BalanceSheetAccount
	Total    float64
}

// BalanceSheet is the structured balance sheet as of a cutoff date.
// Assets carry debit-minus-credit balances; liabilities and equity carry
// credit-minus-debit. Total assets equalling liabilities plus equity is a
// diagnostic, not something this builder enforces.
type BalanceSheet struct {
	Assets                    BalanceSheetSection
	Liabilities               BalanceSheetSection
	Equity                    BalanceSheetSection
	TotalLiabilitiesAndEquity float64
}

// BuildBalanceSheet aggregates closing balances into the three sections.
func BuildBalanceSheet(accounts []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}

	for _, acc := range accounts {
		closing := acc.Closing()
		switch acc.RootType {
		case "Asset":
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: closing}
			assets.Accounts = append(assets.Accounts, row)
			assets.Total += row.Balance
		case "Liability":
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: -closing}
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total += row.Balance
		case "Equity":
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: -closing}
			equity.Accounts = append(equity.Accounts, row)
			equity.Total += row.Balance
		}
	}

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total + equity.Total,
	}
}
