package ledger

import "strings"

// GSTSplit carries the component amounts of one tax total.
type GSTSplit struct {
	CGST float64
	SGST float64
	IGST float64
}

// Total returns the sum of all components.
func (s GSTSplit) Total() float64 {
	return s.CGST + s.SGST + s.IGST
}

// SplitGST divides a tax amount into intra-state (CGST+SGST halves) or
// inter-state (IGST) components. The first two characters of a GSTIN are
// the registration state code; a missing or short GSTIN is treated as
// intra-state. Zero or negative tax yields all-zero components.
func SplitGST(gstin, companyStateCode string, tax float64) GSTSplit {
	if tax <= 0 {
		return GSTSplit{}
	}
	id := strings.TrimSpace(gstin)
	if len(id) >= 2 && id[:2] != companyStateCode {
		return GSTSplit{IGST: tax}
	}
	half := tax / 2
	return GSTSplit{CGST: half, SGST: half}
}
