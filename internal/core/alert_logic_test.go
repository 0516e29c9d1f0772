package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func findAlert(alerts []SmartAlert, title string) *SmartAlert {
	for i := range alerts {
		if alerts[i].Title == title {
			return &alerts[i]
		}
	}
	return nil
}

func TestEvaluateAlerts_QuietSnapshotRaisesNothing(t *testing.T) {
	alerts := evaluateAlerts("t1", AlertSnapshot{Now: scanNow, NetCashFlow30d: decimal.Zero})
	assert.Empty(t, alerts)
}

func TestEvaluateAlerts_LowStock(t *testing.T) {
	snap := AlertSnapshot{
		Now:      scanNow,
		LowStock: []ProductStock{{ID: "p1", Name: "Cooking Oil 1L", Quantity: 3, MinQuantity: 5}},
	}

	alerts := evaluateAlerts("t1", snap)
	a := findAlert(alerts, "Low stock")
	require.NotNil(t, a)
	assert.Equal(t, AlertWarning, a.Type)
	assert.Equal(t, AlertCatInventory, a.Category)
	assert.Equal(t, PriorityHigh, a.Priority)
	assert.True(t, a.ActionRequired)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "t1", a.TenantID)
	assert.Equal(t, scanNow, a.CreatedAt)
}

func TestEvaluateAlerts_OverdueInstallmentIsCritical(t *testing.T) {
	snap := AlertSnapshot{
		Now: scanNow,
		PendingInstallments: []InstallmentRecord{
			{ID: "i1", DueDate: scanNow.AddDate(0, 0, -1), Amount: decimal.RequireFromString("200.00"), Status: StatusPending},
		},
	}

	alerts := evaluateAlerts("t1", snap)
	a := findAlert(alerts, "Overdue installments")
	require.NotNil(t, a)
	assert.Equal(t, AlertError, a.Type)
	assert.Equal(t, PriorityCritical, a.Priority)
}

func TestEvaluateAlerts_InstallmentDueTodayNotOverdue(t *testing.T) {
	snap := AlertSnapshot{
		Now: scanNow,
		PendingInstallments: []InstallmentRecord{
			{ID: "i1", DueDate: scanNow, Amount: decimal.RequireFromString("200.00"), Status: StatusPending},
		},
	}

	assert.Nil(t, findAlert(evaluateAlerts("t1", snap), "Overdue installments"))
}

func TestCountChecksDueSoon_ThreeDayWindowInclusive(t *testing.T) {
	mk := func(days int) CheckRecord {
		return CheckRecord{DueDate: scanNow.AddDate(0, 0, days), Status: StatusPending}
	}

	assert.Equal(t, 1, countChecksDueSoon([]CheckRecord{mk(0)}, scanNow))
	assert.Equal(t, 1, countChecksDueSoon([]CheckRecord{mk(3)}, scanNow))
	assert.Equal(t, 0, countChecksDueSoon([]CheckRecord{mk(4)}, scanNow))
	assert.Equal(t, 0, countChecksDueSoon([]CheckRecord{mk(-1)}, scanNow))

	cleared := CheckRecord{DueDate: scanNow.AddDate(0, 0, 1), Status: StatusCleared}
	assert.Equal(t, 0, countChecksDueSoon([]CheckRecord{cleared}, scanNow))
}

func TestEvaluateAlerts_InactiveCustomersNeedsMoreThanTen(t *testing.T) {
	at10 := evaluateAlerts("t1", AlertSnapshot{Now: scanNow, InactiveCustomers: 10})
	assert.Nil(t, findAlert(at10, "Inactive customers"))

	at11 := evaluateAlerts("t1", AlertSnapshot{Now: scanNow, InactiveCustomers: 11})
	a := findAlert(at11, "Inactive customers")
	require.NotNil(t, a)
	assert.Equal(t, AlertInfo, a.Type)
	assert.Equal(t, PriorityLow, a.Priority)
}

func TestEvaluateAlerts_NegativeCashFlow(t *testing.T) {
	snap := AlertSnapshot{Now: scanNow, NetCashFlow30d: decimal.RequireFromString("-1250.75")}

	a := findAlert(evaluateAlerts("t1", snap), "Negative cash flow")
	require.NotNil(t, a)
	assert.Equal(t, AlertError, a.Type)
	assert.Equal(t, PriorityHigh, a.Priority)
	assert.Contains(t, a.Message, "-1250.75")

	positive := AlertSnapshot{Now: scanNow, NetCashFlow30d: decimal.RequireFromString("0.01")}
	assert.Nil(t, findAlert(evaluateAlerts("t1", positive), "Negative cash flow"))
}

func TestCapRecentAlerts_KeepsFiftyNewest(t *testing.T) {
	var alerts []SmartAlert
	for i := 0; i < 60; i++ {
		alerts = append(alerts, SmartAlert{
			ID:        fmt.Sprintf("a-%d", i),
			CreatedAt: scanNow.Add(time.Duration(i) * time.Minute),
		})
	}

	kept := capRecentAlerts(alerts, retainedAlertLimit)
	require.Len(t, kept, 50)
	// Newest first; the ten oldest are gone.
	assert.Equal(t, "a-59", kept[0].ID)
	assert.Equal(t, "a-10", kept[49].ID)
	for _, a := range kept {
		assert.True(t, a.CreatedAt.After(scanNow.Add(9*time.Minute)))
	}
}

func TestCapRecentAlerts_UnderLimitUntouched(t *testing.T) {
	alerts := []SmartAlert{
		{ID: "old", CreatedAt: scanNow},
		{ID: "new", CreatedAt: scanNow.Add(time.Hour)},
	}

	kept := capRecentAlerts(alerts, retainedAlertLimit)
	require.Len(t, kept, 2)
	assert.Equal(t, "new", kept[0].ID)
	assert.Equal(t, "old", kept[1].ID)
}
