package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rollupNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestComputeCustomerRollup_BalanceAndLoyalty(t *testing.T) {
	data := CustomerSourceData{
		Master: &CustomerRecord{ID: "cust-1", Name: "Ahmed Hassan"},
		Sales: []SaleRecord{
			{ID: "s1", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("1200.00")},
			{ID: "s2", Date: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("350.00")},
		},
		Installments: []InstallmentRecord{
			{ID: "i1", Amount: decimal.RequireFromString("100.00"), Status: StatusPending},
			{ID: "i2", Amount: decimal.RequireFromString("200.00"), Status: StatusPending},
			{ID: "i3", Amount: decimal.RequireFromString("400.00"), Status: StatusPaid},
		},
		Checks: []CheckRecord{
			{ID: "c1", Amount: decimal.RequireFromString("50.00"), Status: StatusPending},
			{ID: "c2", Amount: decimal.RequireFromString("900.00"), Status: StatusCleared},
		},
	}

	ec := computeCustomerRollup("t1", "cust-1", data, rollupNow)

	assert.Equal(t, "Ahmed Hassan", ec.Name)
	assert.True(t, ec.PendingInstallments.Equal(decimal.RequireFromString("300.00")))
	assert.True(t, ec.PendingChecks.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, ec.CurrentBalance.Equal(decimal.RequireFromString("350.00")))
	assert.True(t, ec.TotalPurchases.Equal(decimal.RequireFromString("1550.00")))
	// 1550 / 100, floored
	assert.Equal(t, int64(15), ec.LoyaltyPoints)
	require.NotNil(t, ec.LastSaleDate)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), *ec.LastSaleDate)
	assert.Equal(t, rollupNow, ec.RecomputedAt)
}

func TestComputeCustomerRollup_DanglingCustomerYieldsZeros(t *testing.T) {
	ec := computeCustomerRollup("t1", "ghost", CustomerSourceData{}, rollupNow)

	assert.Empty(t, ec.Name)
	assert.True(t, ec.CurrentBalance.IsZero())
	assert.True(t, ec.TotalPurchases.IsZero())
	assert.Zero(t, ec.LoyaltyPoints)
	assert.Nil(t, ec.LastSaleDate)
}

func TestComputeCustomerRollup_Deterministic(t *testing.T) {
	data := CustomerSourceData{
		Master: &CustomerRecord{ID: "cust-1", Name: "Mona Adel"},
		Sales:  []SaleRecord{{ID: "s1", Date: rollupNow, Total: decimal.RequireFromString("99.99")}},
	}

	first := computeCustomerRollup("t1", "cust-1", data, rollupNow)
	second := computeCustomerRollup("t1", "cust-1", data, rollupNow)

	assert.True(t, first.TotalPurchases.Equal(second.TotalPurchases))
	assert.True(t, first.CurrentBalance.Equal(second.CurrentBalance))
	assert.Equal(t, first.LoyaltyPoints, second.LoyaltyPoints)
}

func TestComputeSupplierRollup(t *testing.T) {
	data := SupplierSourceData{
		Master: &SupplierRecord{ID: "supp-1", Name: "Delta Trading"},
		Purchases: []PurchaseRecord{
			{ID: "p1", Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("2400.00")},
			{ID: "p2", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("780.00")},
		},
		Checks: []CheckRecord{
			{ID: "c1", Amount: decimal.RequireFromString("600.00"), Status: StatusPending},
		},
	}

	es := computeSupplierRollup("t1", "supp-1", data, rollupNow)

	assert.Equal(t, "Delta Trading", es.Name)
	assert.True(t, es.TotalPurchases.Equal(decimal.RequireFromString("3180.00")))
	assert.True(t, es.PendingChecks.Equal(decimal.RequireFromString("600.00")))
	assert.True(t, es.CurrentBalance.Equal(decimal.RequireFromString("600.00")))
	require.NotNil(t, es.LastPurchase)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), *es.LastPurchase)
}

func TestComputeInventoryValue(t *testing.T) {
	products := []ProductStock{
		{ID: "p1", Quantity: 3, PurchaseCost: decimal.RequireFromString("42.50")},
		{ID: "p2", Quantity: 40, PurchaseCost: decimal.RequireFromString("120.00")},
		{ID: "p3", Quantity: 0, PurchaseCost: decimal.RequireFromString("99.00")},
	}

	total := computeInventoryValue(products)
	assert.True(t, total.Equal(decimal.RequireFromString("4927.50")))

	assert.True(t, computeInventoryValue(nil).IsZero())
}
