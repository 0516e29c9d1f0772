package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Alert thresholds. Changing a constant changes the product behavior,
// so they are not configuration.
const (
	checkDueSoonDays       = 3
	customerInactivityDays = 90
	inactiveCustomersFloor = 10
	cashFlowWindowDays     = 30
	retainedAlertLimit     = 50
)

// AlertSnapshot is the read-only state one alert scan evaluates. Each
// scan is stateless: conditions are judged fresh against the snapshot.
type AlertSnapshot struct {
	Now                 time.Time
	LowStock            []ProductStock
	PendingInstallments []InstallmentRecord
	PendingChecks       []CheckRecord
	InactiveCustomers   int
	NetCashFlow30d      decimal.Decimal
}

// evaluateAlerts applies the fixed alert rules to the snapshot.
func evaluateAlerts(tenantID string, snap AlertSnapshot) []SmartAlert {
	var alerts []SmartAlert
	emit := func(a SmartAlert) {
		a.ID = uuid.NewString()
		a.TenantID = tenantID
		a.CreatedAt = snap.Now
		alerts = append(alerts, a)
	}

	if n := len(snap.LowStock); n > 0 {
		emit(SmartAlert{
			Type:           AlertWarning,
			Category:       AlertCatInventory,
			Title:          "Low stock",
			Message:        fmt.Sprintf("%d product(s) at or below minimum stock level", n),
			Priority:       PriorityHigh,
			ActionRequired: true,
			ActionTarget:   "inventory",
		})
	}

	if n := countOverdueInstallments(snap.PendingInstallments, snap.Now); n > 0 {
		emit(SmartAlert{
			Type:           AlertError,
			Category:       AlertCatFinancial,
			Title:          "Overdue installments",
			Message:        fmt.Sprintf("%d installment(s) past due and still pending", n),
			Priority:       PriorityCritical,
			ActionRequired: true,
			ActionTarget:   "installments",
		})
	}

	if n := countChecksDueSoon(snap.PendingChecks, snap.Now); n > 0 {
		emit(SmartAlert{
			Type:           AlertWarning,
			Category:       AlertCatFinancial,
			Title:          "Checks due soon",
			Message:        fmt.Sprintf("%d check(s) due within %d days", n, checkDueSoonDays),
			Priority:       PriorityMedium,
			ActionRequired: true,
			ActionTarget:   "checks",
		})
	}

	if snap.InactiveCustomers > inactiveCustomersFloor {
		emit(SmartAlert{
			Type:         AlertInfo,
			Category:     AlertCatCustomers,
			Title:        "Inactive customers",
			Message:      fmt.Sprintf("%d customers with no purchase in the last %d days", snap.InactiveCustomers, customerInactivityDays),
			Priority:     PriorityLow,
			ActionTarget: "customers",
		})
	}

	if snap.NetCashFlow30d.IsNegative() {
		emit(SmartAlert{
			Type:           AlertError,
			Category:       AlertCatFinancial,
			Title:          "Negative cash flow",
			Message:        fmt.Sprintf("Net cash flow over the last %d days is %s", cashFlowWindowDays, snap.NetCashFlow30d.StringFixed(2)),
			Priority:       PriorityHigh,
			ActionRequired: true,
			ActionTarget:   "reports",
		})
	}

	return alerts
}

func countOverdueInstallments(installments []InstallmentRecord, now time.Time) int {
	today := truncateToDay(now)
	n := 0
	for _, inst := range installments {
		if inst.Status == StatusPending && truncateToDay(inst.DueDate).Before(today) {
			n++
		}
	}
	return n
}

// countChecksDueSoon counts pending checks due between today and
// checkDueSoonDays from today, both ends inclusive.
func countChecksDueSoon(checks []CheckRecord, now time.Time) int {
	today := truncateToDay(now)
	horizon := today.AddDate(0, 0, checkDueSoonDays)
	n := 0
	for _, ch := range checks {
		if ch.Status != StatusPending {
			continue
		}
		due := truncateToDay(ch.DueDate)
		if !due.Before(today) && !due.After(horizon) {
			n++
		}
	}
	return n
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// capRecentAlerts sorts alerts newest-first and keeps at most limit.
// The retained list is bounded; history beyond it is dropped.
func capRecentAlerts(alerts []SmartAlert, limit int) []SmartAlert {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}
