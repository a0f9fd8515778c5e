package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateLines(t *testing.T) {
	t.Run("empty set is a valid skip", func(t *testing.T) {
		require.NoError(t, ValidateLines(nil))
	})

	t.Run("balanced pair", func(t *testing.T) {
		require.NoError(t, ValidateLines([]Line{
			{AccountID: 1, Debit: 100},
			{AccountID: 2, Credit: 100},
		}))
	})

	t.Run("within tolerance", func(t *testing.T) {
		require.NoError(t, ValidateLines([]Line{
			{AccountID: 1, Debit: 100.004},
			{AccountID: 2, Credit: 100},
		}))
	})

	t.Run("unbalanced", func(t *testing.T) {
		err := ValidateLines([]Line{
			{AccountID: 1, Debit: 100},
			{AccountID: 2, Credit: 99},
		})
		require.ErrorIs(t, err, ErrUnbalanced)
	})

	t.Run("missing account", func(t *testing.T) {
		err := ValidateLines([]Line{
			{Debit: 100},
			{AccountID: 2, Credit: 100},
		})
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("negative amount", func(t *testing.T) {
		err := ValidateLines([]Line{
			{AccountID: 1, Debit: -100},
			{AccountID: 2, Credit: -100},
		})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("both sides set", func(t *testing.T) {
		err := ValidateLines([]Line{
			{AccountID: 1, Debit: 100, Credit: 100},
		})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("zero line", func(t *testing.T) {
		err := ValidateLines([]Line{
			{AccountID: 1},
			{AccountID: 2},
		})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestRootTypeNaturalDirection(t *testing.T) {
	require.True(t, RootTypeAsset.DebitNatural())
	require.True(t, RootTypeExpense.DebitNatural())
	require.False(t, RootTypeLiability.DebitNatural())
	require.False(t, RootTypeEquity.DebitNatural())
	require.False(t, RootTypeIncome.DebitNatural())
}

func TestReferenceTypeRebuildable(t *testing.T) {
	for _, k := range RebuildableKinds {
		require.True(t, k.Rebuildable(), string(k))
	}
	require.False(t, RefOpeningBalance.Rebuildable())
	require.False(t, ReferenceType("manual").Rebuildable())
}
