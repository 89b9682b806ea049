package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cellkeeper/cellkeeper/internal/cache"
	"github.com/cellkeeper/cellkeeper/internal/inventory"
	"github.com/cellkeeper/cellkeeper/internal/logging"
	"github.com/cellkeeper/cellkeeper/internal/models"
)

// BatteryAPI handles HTTP API requests for the battery inventory
type BatteryAPI struct {
	inventorySvc *inventory.Service
	listCache    cache.Cache
	logger       *logging.Logger
}

// NewBatteryAPI creates a new battery API handler
func NewBatteryAPI(inventorySvc *inventory.Service, listCache cache.Cache, logger *logging.Logger) *BatteryAPI {
	return &BatteryAPI{
		inventorySvc: inventorySvc,
		listCache:    listCache,
		logger:       logger,
	}
}

// RegisterRoutes registers battery routes on the given mux
func (api *BatteryAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/batteries", corsMiddleware(api.handleBatteries))
	mux.HandleFunc("/api/batteries/", corsMiddleware(api.handleBatteryItem))
}

// handleBatteries handles list and upsert operations
func (api *BatteryAPI) handleBatteries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.listBatteries(w, r)
	case http.MethodPost:
		api.upsertBattery(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// listBatteries returns the inventory, served from the list cache when warm
func (api *BatteryAPI) listBatteries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := models.BatteryListParams{
		Category: models.BatteryCategory(query.Get("category")),
		Query:    query.Get("query"),
		Sort:     query.Get("sort"),
	}

	cacheKey := "list:" + r.URL.RawQuery
	if api.listCache != nil {
		if cached, ok := api.listCache.Get(cacheKey); ok {
			api.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	response := api.inventorySvc.List(params)

	if api.listCache != nil {
		api.listCache.Set(cacheKey, response)
	}

	api.writeJSON(w, http.StatusOK, response)
}

// upsertBattery creates or replaces a battery
func (api *BatteryAPI) upsertBattery(w http.ResponseWriter, r *http.Request) {
	var params models.UpsertBatteryParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	battery, err := api.inventorySvc.Upsert(r.Context(), params)
	if err != nil {
		api.logger.Error("Upsert battery failed", logging.WithField("error", err.Error()))
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	api.invalidateList()
	api.writeJSON(w, http.StatusOK, battery)
}

// handleBatteryItem handles single battery operations and sub-resources
func (api *BatteryAPI) handleBatteryItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/batteries/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Battery ID required", http.StatusBadRequest)
		return
	}

	batteryID := parts[0]

	if len(parts) > 1 {
		switch parts[1] {
		case "consume":
			api.consumeBattery(w, r, batteryID)
			return
		case "recharge":
			api.rechargeBattery(w, r, batteryID)
			return
		case "history":
			if len(parts) > 2 {
				api.removeChargingEvent(w, r, batteryID, parts[2])
				return
			}
			http.Error(w, "Event ID required", http.StatusBadRequest)
			return
		default:
			http.Error(w, "Unknown resource", http.StatusNotFound)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		api.getBattery(w, r, batteryID)
	case http.MethodDelete:
		api.deleteBattery(w, r, batteryID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getBattery retrieves a single battery
func (api *BatteryAPI) getBattery(w http.ResponseWriter, r *http.Request, id string) {
	battery := api.inventorySvc.Get(id)
	if battery == nil {
		http.Error(w, "Battery not found", http.StatusNotFound)
		return
	}

	api.writeJSON(w, http.StatusOK, battery)
}

// deleteBattery deletes a battery and its embedded history
func (api *BatteryAPI) deleteBattery(w http.ResponseWriter, r *http.Request, id string) {
	if err := api.inventorySvc.Delete(r.Context(), id); err != nil {
		api.logger.Error("Delete battery failed", logging.WithField("error", err.Error()))
		api.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	api.invalidateList()
	w.WriteHeader(http.StatusNoContent)
}

// consumeBattery moves one unit out of available stock
func (api *BatteryAPI) consumeBattery(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	battery, err := api.inventorySvc.Consume(r.Context(), id)
	if err != nil {
		api.logger.Error("Consume battery failed", logging.WithFields(map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		}))
		api.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if battery == nil {
		http.Error(w, "Battery not found", http.StatusNotFound)
		return
	}

	api.invalidateList()
	api.writeJSON(w, http.StatusOK, battery)
}

// rechargeBattery moves units from in-use back to available stock
func (api *BatteryAPI) rechargeBattery(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params models.RechargeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	battery, err := api.inventorySvc.Recharge(r.Context(), id, params.Amount)
	if err != nil {
		api.logger.Error("Recharge battery failed", logging.WithField("error", err.Error()))
		api.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if battery == nil {
		http.Error(w, "Battery not found", http.StatusNotFound)
		return
	}

	api.invalidateList()
	api.writeJSON(w, http.StatusOK, battery)
}

// removeChargingEvent trims one entry from a battery's recharge ledger
func (api *BatteryAPI) removeChargingEvent(w http.ResponseWriter, r *http.Request, batteryID, eventID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	battery, err := api.inventorySvc.RemoveChargingEvent(r.Context(), batteryID, eventID)
	if err != nil {
		api.logger.Error("Remove charging event failed", logging.WithField("error", err.Error()))
		api.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if battery == nil {
		http.Error(w, "Battery not found", http.StatusNotFound)
		return
	}

	api.invalidateList()
	api.writeJSON(w, http.StatusOK, battery)
}

func (api *BatteryAPI) invalidateList() {
	if api.listCache != nil {
		api.listCache.Clear()
	}
}

func (api *BatteryAPI) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
