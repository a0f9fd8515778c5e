package ledger

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type openingBalanceRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
	AsOf   string  `json:"as_of" validate:"required"`
}

type rebuildRequest struct {
	Start  string   `json:"start" validate:"required"`
	End    string   `json:"end" validate:"required"`
	Kinds  []string `json:"kinds" validate:"dive,oneof=order payment expense vendor_bill vendor_payment"`
	DryRun bool     `json:"dry_run"`
}

func (req rebuildRequest) toInput(actorID *int64) (RebuildInput, error) {
	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		return RebuildInput{}, fmt.Errorf("%w: bad start date %q", ErrInvalidReference, req.Start)
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		return RebuildInput{}, fmt.Errorf("%w: bad end date %q", ErrInvalidReference, req.End)
	}
	kinds := make([]ReferenceType, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds = append(kinds, ReferenceType(k))
	}
	return RebuildInput{Start: start, End: end, Kinds: kinds, DryRun: req.DryRun, ActorID: actorID}, nil
}
