package models

import (
	"time"
)

// BatteryCategory represents the kind of battery being tracked
type BatteryCategory string

const (
	CategoryPrimary      BatteryCategory = "PRIMARY"
	CategoryButtonCell   BatteryCategory = "BUTTON_CELL"
	CategoryRechargeable BatteryCategory = "RECHARGEABLE"
)

// ValidCategories returns all valid battery categories
func ValidCategories() []BatteryCategory {
	return []BatteryCategory{CategoryPrimary, CategoryButtonCell, CategoryRechargeable}
}

// IsValidCategory checks if a category value is valid
func IsValidCategory(c BatteryCategory) bool {
	for _, valid := range ValidCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// ChargingEvent is one recharge action in a battery's ledger
type ChargingEvent struct {
	ID    string    `json:"id"`
	Date  time.Time `json:"date"`
	Count int       `json:"count"` // units moved from in-use back to available
}

// Battery represents one battery type/model in the inventory, not one
// physical unit. Rechargeable-only fields stay at their zero values for
// PRIMARY and BUTTON_CELL batteries.
type Battery struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Brand    string          `json:"brand,omitempty"`
	Size     string          `json:"size,omitempty"` // e.g., AA, AAA, CR2032
	Category BatteryCategory `json:"category"`

	Quantity      int `json:"quantity"`      // units available/ready for use
	TotalQuantity int `json:"totalQuantity"` // units owned; cycle batch size for rechargeables
	MinQuantity   int `json:"minQuantity"`   // reorder threshold, display only

	InUse            int             `json:"inUse,omitempty"`
	UsageAccumulator int             `json:"usageAccumulator,omitempty"`
	CapacityMah      int             `json:"capacityMah,omitempty"`
	ChargeCycles     int             `json:"chargeCycles,omitempty"`
	LastCharged      *time.Time      `json:"lastCharged,omitempty"`
	ChargingHistory  []ChargingEvent `json:"chargingHistory,omitempty"` // newest first

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Computed on read, never stored
	LowStock bool `json:"lowStock,omitempty"`
}

// IsRechargeable reports whether the battery participates in the
// in-use/recharge lifecycle.
func (b *Battery) IsRechargeable() bool {
	return b.Category == CategoryRechargeable
}

// BatchSize is the number of consumptions that make up one full use-cycle
// of a rechargeable batch. Never less than 1, so a battery with an unset
// total quantity completes a cycle on every use.
func (b *Battery) BatchSize() int {
	if b.TotalQuantity < 1 {
		return 1
	}
	return b.TotalQuantity
}

// IsLowStock reports whether available stock has fallen to or below the
// reorder threshold. A zero threshold disables the check.
func (b *Battery) IsLowStock() bool {
	return b.MinQuantity > 0 && b.Quantity <= b.MinQuantity
}

// UpsertBatteryParams defines the create-or-replace payload for a battery.
// Fields that are not meaningful for the chosen category are cleared during
// normalization; a missing ID triggers generation of a fresh one.
type UpsertBatteryParams struct {
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name"`
	Brand            string          `json:"brand,omitempty"`
	Size             string          `json:"size,omitempty"`
	Category         BatteryCategory `json:"category"`
	Quantity         int             `json:"quantity,omitempty"`
	TotalQuantity    int             `json:"totalQuantity,omitempty"`
	MinQuantity      int             `json:"minQuantity,omitempty"`
	InUse            int             `json:"inUse,omitempty"`
	UsageAccumulator int             `json:"usageAccumulator,omitempty"`
	CapacityMah      int             `json:"capacityMah,omitempty"`
	ChargeCycles     int             `json:"chargeCycles,omitempty"`
	LastCharged      *time.Time      `json:"lastCharged,omitempty"`
	ChargingHistory  []ChargingEvent `json:"chargingHistory,omitempty"`
}

// RechargeParams defines the payload for a recharge request
type RechargeParams struct {
	Amount int `json:"amount"`
}

// BatteryListParams defines parameters for listing batteries
type BatteryListParams struct {
	Category BatteryCategory `json:"category,omitempty"`
	Query    string          `json:"query,omitempty"`
	Sort     string          `json:"sort,omitempty"` // name, updated, cycles
}

// BatteryListResponse represents the response for listing batteries
type BatteryListResponse struct {
	Batteries     []Battery `json:"batteries"`
	TotalCount    int       `json:"totalCount"`
	LowStockCount int       `json:"lowStockCount"`
}
