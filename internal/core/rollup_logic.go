package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// loyaltyDivisor: one loyalty point per 100 of total purchases.
var loyaltyDivisor = decimal.NewFromInt(100)

// CustomerSourceData is everything a customer rollup is a function of.
// Master may be nil for a dangling customer id; the rollup then yields
// zero-valued fields instead of failing.
type CustomerSourceData struct {
	Master       *CustomerRecord
	Sales        []SaleRecord
	Installments []InstallmentRecord
	Checks       []CheckRecord
}

// SupplierSourceData mirrors CustomerSourceData for the supplier side.
type SupplierSourceData struct {
	Master    *SupplierRecord
	Purchases []PurchaseRecord
	Checks    []CheckRecord
}

// computeCustomerRollup is a pure function: identical inputs always
// produce identical output. CurrentBalance is pending installments plus
// pending checks, committed but uncollected money, not cash flow.
func computeCustomerRollup(tenantID, customerID string, data CustomerSourceData, now time.Time) EnhancedCustomer {
	ec := EnhancedCustomer{
		CustomerID:          customerID,
		TenantID:            tenantID,
		TotalPurchases:      decimal.Zero,
		PendingInstallments: decimal.Zero,
		PendingChecks:       decimal.Zero,
		CurrentBalance:      decimal.Zero,
		RecomputedAt:        now,
	}
	if data.Master != nil {
		ec.Name = data.Master.Name
	}

	for _, s := range data.Sales {
		ec.TotalPurchases = ec.TotalPurchases.Add(s.Total)
		if ec.LastSaleDate == nil || s.Date.After(*ec.LastSaleDate) {
			d := s.Date
			ec.LastSaleDate = &d
		}
	}
	for _, inst := range data.Installments {
		if inst.Status == StatusPending {
			ec.PendingInstallments = ec.PendingInstallments.Add(inst.Amount)
		}
	}
	for _, ch := range data.Checks {
		if ch.Status == StatusPending {
			ec.PendingChecks = ec.PendingChecks.Add(ch.Amount)
		}
	}

	ec.CurrentBalance = ec.PendingInstallments.Add(ec.PendingChecks)
	ec.LoyaltyPoints = ec.TotalPurchases.Div(loyaltyDivisor).Floor().IntPart()
	return ec
}

func computeSupplierRollup(tenantID, supplierID string, data SupplierSourceData, now time.Time) EnhancedSupplier {
	es := EnhancedSupplier{
		SupplierID:     supplierID,
		TenantID:       tenantID,
		TotalPurchases: decimal.Zero,
		PendingChecks:  decimal.Zero,
		CurrentBalance: decimal.Zero,
		RecomputedAt:   now,
	}
	if data.Master != nil {
		es.Name = data.Master.Name
	}

	for _, p := range data.Purchases {
		es.TotalPurchases = es.TotalPurchases.Add(p.Total)
		if es.LastPurchase == nil || p.Date.After(*es.LastPurchase) {
			d := p.Date
			es.LastPurchase = &d
		}
	}
	for _, ch := range data.Checks {
		if ch.Status == StatusPending {
			es.PendingChecks = es.PendingChecks.Add(ch.Amount)
		}
	}

	es.CurrentBalance = es.PendingChecks
	return es
}

// computeInventoryValue sums quantity times purchase cost across the
// product table snapshot.
func computeInventoryValue(products []ProductStock) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.PurchaseCost.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total
}
