package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cellkeeper/cellkeeper/internal/logging"
	"github.com/cellkeeper/cellkeeper/internal/models"
)

// ServiceError represents a service-level validation error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Store is the durable persistence collaborator. Each battery is one row
// keyed by id; the charging history travels embedded in the entity.
type Store interface {
	List(ctx context.Context) ([]models.Battery, error)
	Upsert(ctx context.Context, b models.Battery) error
	Delete(ctx context.Context, id string) error
}

// SyncErrorHandler is notified when a background write to the store fails.
// The local state is never rolled back; this is a reporting side channel.
type SyncErrorHandler func(batteryID string, err error)

// Service owns the battery inventory. The in-memory map is the source of
// truth: every mutation is applied to it synchronously and then written to
// the store in the background, best effort, one shot. When the store is
// unreachable the inventory keeps operating on local state alone.
type Service struct {
	mu        sync.RWMutex
	batteries map[string]models.Battery

	store  Store
	logger *logging.Logger

	onSyncError SyncErrorHandler

	syncMu       sync.Mutex
	lastSyncErr  error
	pendingSyncs sync.WaitGroup

	now func() time.Time
}

// NewService creates an inventory service. A nil store is allowed and means
// local-only operation (persistence disabled).
func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{
		batteries: make(map[string]models.Battery),
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// SetSyncErrorHandler installs the persistence-failure side channel.
// Must be called before the service starts taking mutations.
func (s *Service) SetSyncErrorHandler(fn SyncErrorHandler) {
	s.onSyncError = fn
}

// Load primes the local inventory from storage. On failure the service
// starts empty and continues operating; the caller decides whether the
// error is worth more than a warning.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	list, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn("Failed to load inventory from storage, starting with local state only",
			logging.WithField("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range list {
		s.batteries[b.ID] = b
	}

	s.logger.Info("Loaded inventory", logging.WithField("count", len(list)))
	return nil
}

// Flush waits for all dispatched background writes to finish
func (s *Service) Flush() {
	s.pendingSyncs.Wait()
}

// LastSyncError returns the most recent persistence failure, or nil when
// the last write round trip succeeded.
func (s *Service) LastSyncError() error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.lastSyncErr
}

// Get retrieves a battery by id, or nil when unknown
func (s *Service) Get(id string) *models.Battery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batteries[id]
	if !ok {
		return nil
	}
	b.LowStock = b.IsLowStock()
	return &b
}

var nameCollator = collate.New(language.English, collate.IgnoreCase)

// List returns the inventory, optionally filtered by category or a
// name/brand/size substring, sorted per params (default: last updated first)
func (s *Service) List(params models.BatteryListParams) *models.BatteryListResponse {
	s.mu.RLock()
	items := make([]models.Battery, 0, len(s.batteries))
	for _, b := range s.batteries {
		if params.Category != "" && b.Category != params.Category {
			continue
		}
		if params.Query != "" && !matchesQuery(&b, params.Query) {
			continue
		}
		b.LowStock = b.IsLowStock()
		items = append(items, b)
	}
	s.mu.RUnlock()

	switch params.Sort {
	case "name":
		sort.SliceStable(items, func(i, j int) bool {
			return nameCollator.CompareString(items[i].Name, items[j].Name) < 0
		})
	case "cycles":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ChargeCycles > items[j].ChargeCycles
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		})
	}

	lowStock := 0
	for i := range items {
		if items[i].LowStock {
			lowStock++
		}
	}

	return &models.BatteryListResponse{
		Batteries:     items,
		TotalCount:    len(items),
		LowStockCount: lowStock,
	}
}

func matchesQuery(b *models.Battery, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(b.Name), q) ||
		strings.Contains(strings.ToLower(b.Brand), q) ||
		strings.Contains(strings.ToLower(b.Size), q)
}

// Consume moves one unit out of available stock. For rechargeables the unit
// goes into use and advances the cycle accumulator; for consumables it
// leaves the owned stock permanently. Unknown ids and empty stock are
// silent no-ops.
func (s *Service) Consume(ctx context.Context, id string) (*models.Battery, error) {
	s.mu.Lock()
	b, ok := s.batteries[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Consume ignored, battery unknown", logging.WithField("id", id))
		return nil, nil
	}

	next, changed := applyConsume(b, s.now())
	if !changed {
		s.mu.Unlock()
		s.logger.Debug("Consume ignored, no units available", logging.WithField("id", id))
		return &b, nil
	}

	s.batteries[id] = next
	s.mu.Unlock()

	s.logger.Info("Consumed battery unit", logging.WithFields(map[string]interface{}{
		"id":       id,
		"quantity": next.Quantity,
		"in_use":   next.InUse,
	}))

	s.persist(next)
	return &next, nil
}

// applyConsume computes the full next state for a consumption. The bool
// result reports whether any state changed.
func applyConsume(b models.Battery, now time.Time) (models.Battery, bool) {
	if b.Quantity <= 0 {
		return b, false
	}

	b.Quantity--
	if b.IsRechargeable() {
		b.InUse++
		b.UsageAccumulator++
		if b.UsageAccumulator >= b.BatchSize() {
			// The whole owned batch has rotated through one use
			b.UsageAccumulator = 0
			b.ChargeCycles++
		}
	} else {
		b.TotalQuantity--
		if b.TotalQuantity < 0 {
			b.TotalQuantity = 0
		}
	}
	b.UpdatedAt = now
	return b, true
}

// Recharge moves up to amount units from in-use back to available stock and
// prepends a ledger entry recording the move. The requested amount is
// silently clamped to what is actually in use; an unknown id is a no-op.
// Cycle counters are advanced by consumption only, never here.
func (s *Service) Recharge(ctx context.Context, id string, amount int) (*models.Battery, error) {
	if amount < 1 {
		return nil, &ServiceError{Message: "amount must be at least 1"}
	}

	s.mu.Lock()
	b, ok := s.batteries[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Recharge ignored, battery unknown", logging.WithField("id", id))
		return nil, nil
	}

	next := applyRecharge(b, amount, s.now(), uuid.NewString())
	s.batteries[id] = next
	s.mu.Unlock()

	moved := next.ChargingHistory[0].Count
	s.logger.Info("Recharged battery", logging.WithFields(map[string]interface{}{
		"id":       id,
		"moved":    moved,
		"quantity": next.Quantity,
		"in_use":   next.InUse,
	}))

	s.persist(next)
	return &next, nil
}

func applyRecharge(b models.Battery, amount int, now time.Time, eventID string) models.Battery {
	move := amount
	if b.InUse < move {
		move = b.InUse
	}

	b.Quantity += move
	b.InUse -= move
	b.LastCharged = &now

	// Prepend: the ledger is newest first. A fresh slice keeps the swapped-in
	// entity independent of the one handed out before the mutation.
	history := make([]models.ChargingEvent, 0, len(b.ChargingHistory)+1)
	history = append(history, models.ChargingEvent{ID: eventID, Date: now, Count: move})
	history = append(history, b.ChargingHistory...)
	b.ChargingHistory = history

	b.UpdatedAt = now
	return b
}

// RemoveChargingEvent deletes a single entry from a battery's ledger. It is
// purely a ledger edit: quantity, in-use and cycle counters are untouched.
func (s *Service) RemoveChargingEvent(ctx context.Context, batteryID, eventID string) (*models.Battery, error) {
	s.mu.Lock()
	b, ok := s.batteries[batteryID]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}

	history := make([]models.ChargingEvent, 0, len(b.ChargingHistory))
	removed := false
	for _, ev := range b.ChargingHistory {
		if ev.ID == eventID {
			removed = true
			continue
		}
		history = append(history, ev)
	}

	if !removed {
		s.mu.Unlock()
		return &b, nil
	}

	b.ChargingHistory = history
	b.UpdatedAt = s.now()
	s.batteries[batteryID] = b
	s.mu.Unlock()

	s.logger.Info("Removed charging event", logging.WithFields(map[string]interface{}{
		"id":       batteryID,
		"event_id": eventID,
	}))

	s.persist(b)
	return &b, nil
}

// Upsert creates or fully replaces a battery. Fields that are meaningless
// for the chosen category are cleared, so switching a battery to PRIMARY
// drops its in-use count, cycle counters and ledger. Replaying the same
// payload is safe.
func (s *Service) Upsert(ctx context.Context, params models.UpsertBatteryParams) (*models.Battery, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, &ServiceError{Message: "name is required"}
	}
	if !models.IsValidCategory(params.Category) {
		return nil, &ServiceError{Message: "invalid category: " + string(params.Category)}
	}

	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	b := models.Battery{
		ID:            id,
		Name:          params.Name,
		Brand:         params.Brand,
		Size:          params.Size,
		Category:      params.Category,
		Quantity:      params.Quantity,
		TotalQuantity: params.TotalQuantity,
		MinQuantity:   params.MinQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	existing, exists := s.batteries[id]
	if exists {
		b.CreatedAt = existing.CreatedAt
	}

	if b.IsRechargeable() {
		b.InUse = params.InUse
		b.UsageAccumulator = params.UsageAccumulator
		b.CapacityMah = params.CapacityMah
		b.ChargeCycles = params.ChargeCycles
		b.LastCharged = params.LastCharged
		b.ChargingHistory = params.ChargingHistory
		if params.ChargingHistory == nil && exists {
			// Edits that do not resubmit the ledger keep it
			b.ChargingHistory = existing.ChargingHistory
			if params.LastCharged == nil {
				b.LastCharged = existing.LastCharged
			}
		}
	} else if b.TotalQuantity == 0 {
		// Physical stock and ready stock are the same pool for consumables
		b.TotalQuantity = b.Quantity
	}

	s.batteries[id] = b
	s.mu.Unlock()

	s.logger.Info("Upserted battery", logging.WithFields(map[string]interface{}{
		"id":       id,
		"category": b.Category,
		"created":  !exists,
	}))

	s.persist(b)
	return &b, nil
}

// Delete removes a battery and its embedded history. Unknown ids are a
// silent no-op.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.batteries[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.batteries, id)
	s.mu.Unlock()

	s.logger.Info("Deleted battery", logging.WithField("id", id))

	s.persistDelete(id)
	return nil
}

// persist dispatches a fire-and-forget durable write. A failed write is
// reported and the local state stands; the inventory may diverge from
// storage until the next successful write.
func (s *Service) persist(b models.Battery) {
	if s.store == nil {
		return
	}

	s.pendingSyncs.Add(1)
	go func() {
		defer s.pendingSyncs.Done()
		err := s.store.Upsert(context.Background(), b)
		s.recordSyncResult(b.ID, err)
	}()
}

func (s *Service) persistDelete(id string) {
	if s.store == nil {
		return
	}

	s.pendingSyncs.Add(1)
	go func() {
		defer s.pendingSyncs.Done()
		err := s.store.Delete(context.Background(), id)
		s.recordSyncResult(id, err)
	}()
}

func (s *Service) recordSyncResult(batteryID string, err error) {
	s.syncMu.Lock()
	s.lastSyncErr = err
	s.syncMu.Unlock()

	if err == nil {
		return
	}

	s.logger.Warn("Battery write failed, local state retained", logging.WithFields(map[string]interface{}{
		"id":    batteryID,
		"error": err.Error(),
	}))
	if s.onSyncError != nil {
		s.onSyncError(batteryID, err)
	}
}
