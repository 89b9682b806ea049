package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cellkeeper/cellkeeper/internal/models"
)

// BatteryStore handles battery database operations
type BatteryStore struct {
	db *DB
}

// NewBatteryStore creates a new battery store
func NewBatteryStore(db *DB) *BatteryStore {
	return &BatteryStore{db: db}
}

const batteryColumns = `id, name, brand, size, category, quantity, total_quantity, min_quantity,
       in_use, usage_accumulator, capacity_mah, charge_cycles, last_charged, charging_history,
       created_at, updated_at`

// List fetches the full inventory
func (s *BatteryStore) List(ctx context.Context) ([]models.Battery, error) {
	query := fmt.Sprintf(`SELECT %s FROM batteries ORDER BY updated_at DESC`, batteryColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list batteries: %w", err)
	}
	defer rows.Close()

	batteries := []models.Battery{}
	for rows.Next() {
		battery, err := scanBattery(rows)
		if err != nil {
			return nil, err
		}
		batteries = append(batteries, *battery)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batteries: %w", err)
	}

	return batteries, nil
}

// Get retrieves a battery by ID, or nil when no row exists
func (s *BatteryStore) Get(ctx context.Context, id string) (*models.Battery, error) {
	query := fmt.Sprintf(`SELECT %s FROM batteries WHERE id = $1`, batteryColumns)

	battery, err := scanBattery(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return battery, nil
}

// Upsert creates or fully replaces a battery row by id. Replaying the same
// entity is safe.
func (s *BatteryStore) Upsert(ctx context.Context, b models.Battery) error {
	historyJSON, err := json.Marshal(historyOrEmpty(b.ChargingHistory))
	if err != nil {
		return fmt.Errorf("failed to encode charging history: %w", err)
	}

	var brand, size sql.NullString
	if b.Brand != "" {
		brand = sql.NullString{String: b.Brand, Valid: true}
	}
	if b.Size != "" {
		size = sql.NullString{String: b.Size, Valid: true}
	}

	var capacity sql.NullInt32
	if b.CapacityMah > 0 {
		capacity = sql.NullInt32{Int32: int32(b.CapacityMah), Valid: true}
	}

	var lastCharged sql.NullTime
	if b.LastCharged != nil {
		lastCharged = sql.NullTime{Time: *b.LastCharged, Valid: true}
	}

	query := `
		INSERT INTO batteries (id, name, brand, size, category, quantity, total_quantity, min_quantity,
		                       in_use, usage_accumulator, capacity_mah, charge_cycles, last_charged,
		                       charging_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			size = EXCLUDED.size,
			category = EXCLUDED.category,
			quantity = EXCLUDED.quantity,
			total_quantity = EXCLUDED.total_quantity,
			min_quantity = EXCLUDED.min_quantity,
			in_use = EXCLUDED.in_use,
			usage_accumulator = EXCLUDED.usage_accumulator,
			capacity_mah = EXCLUDED.capacity_mah,
			charge_cycles = EXCLUDED.charge_cycles,
			last_charged = EXCLUDED.last_charged,
			charging_history = EXCLUDED.charging_history,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.Name, brand, size, string(b.Category),
		b.Quantity, b.TotalQuantity, b.MinQuantity,
		b.InUse, b.UsageAccumulator, capacity, b.ChargeCycles,
		lastCharged, historyJSON, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert battery: %w", err)
	}

	return nil
}

// Delete removes a battery row. Deleting an absent id is not an error;
// the embedded history goes with the row.
func (s *BatteryStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batteries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete battery: %w", err)
	}
	return nil
}

func historyOrEmpty(history []models.ChargingEvent) []models.ChargingEvent {
	if history == nil {
		return []models.ChargingEvent{}
	}
	return history
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBattery(row scanner) (*models.Battery, error) {
	battery := &models.Battery{}
	var (
		scanBrand, scanSize sql.NullString
		scanCapacity        sql.NullInt32
		scanLastCharged     sql.NullTime
		scanHistory         []byte
	)

	err := row.Scan(
		&battery.ID, &battery.Name, &scanBrand, &scanSize, &battery.Category,
		&battery.Quantity, &battery.TotalQuantity, &battery.MinQuantity,
		&battery.InUse, &battery.UsageAccumulator, &scanCapacity, &battery.ChargeCycles,
		&scanLastCharged, &scanHistory,
		&battery.CreatedAt, &battery.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan battery: %w", err)
	}

	battery.Brand = scanBrand.String
	battery.Size = scanSize.String
	if scanCapacity.Valid {
		battery.CapacityMah = int(scanCapacity.Int32)
	}
	if scanLastCharged.Valid {
		battery.LastCharged = &scanLastCharged.Time
	}

	var history []models.ChargingEvent
	if err := json.Unmarshal(scanHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to decode charging history: %w", err)
	}
	if len(history) > 0 {
		battery.ChargingHistory = history
	}

	return battery, nil
}
