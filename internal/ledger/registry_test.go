package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOrCreateCreatesOnce(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(Settings{})
	ctx := context.Background()

	first, err := registry.Sales(ctx, repo)
	require.NoError(t, err)
	second, err := registry.Sales(ctx, repo)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.accounts, 1)
}

func TestResolveOrCreateMatchesCaseInsensitive(t *testing.T) {
	repo := newMemRepo()
	existing := repo.addAccount("sales", RootTypeIncome)
	registry := NewRegistry(Settings{})

	resolved, err := registry.Sales(context.Background(), repo)
	require.NoError(t, err)
	require.Equal(t, existing.ID, resolved.ID)
}

func TestResolveOrCreateBackfillsEmptyFields(t *testing.T) {
	repo := newMemRepo()
	existing := repo.addAccount("Accounts Payable - Sharma Supplies", RootTypeLiability)
	registry := NewRegistry(Settings{})

	resolved, err := registry.VendorPayable(context.Background(), repo, "Sharma Supplies", "SHARMA")
	require.NoError(t, err)
	require.Equal(t, existing.ID, resolved.ID)
	require.Equal(t, "AP-SHARMA", resolved.Code)
	require.Equal(t, "Payable", resolved.AccountType)
}

func TestResolveOrCreateNeverOverwrites(t *testing.T) {
	repo := newMemRepo()
	existing := repo.addAccount("Accounts Payable - Sharma Supplies", RootTypeLiability)
	existing.Code = "LEGACY-01"
	registry := NewRegistry(Settings{})

	resolved, err := registry.VendorPayable(context.Background(), repo, "Sharma Supplies", "SHARMA")
	require.NoError(t, err)
	require.Equal(t, "LEGACY-01", resolved.Code)
}

func TestVendorPayableWithoutVendorFallsBack(t *testing.T) {
	repo := newMemRepo()
	registry := NewRegistry(Settings{})

	resolved, err := registry.VendorPayable(context.Background(), repo, "", "")
	require.NoError(t, err)
	require.Equal(t, "Accounts Payable", resolved.Name)
}

func TestConfiguredOverrideWins(t *testing.T) {
	repo := newMemRepo()
	petty := repo.addAccount("Petty Cash Drawer", RootTypeAsset)
	registry := NewRegistry(Settings{CashAccountID: &petty.ID})

	resolved, err := registry.Cash(context.Background(), repo)
	require.NoError(t, err)
	require.Equal(t, petty.ID, resolved.ID)
}

func TestStaleOverrideFallsBack(t *testing.T) {
	repo := newMemRepo()
	missing := int64(404)
	registry := NewRegistry(Settings{CashAccountID: &missing})

	resolved, err := registry.Cash(context.Background(), repo)
	require.NoError(t, err)
	require.Equal(t, "Cash", resolved.Name)
}
