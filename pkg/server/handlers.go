package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sbauctions/archive/pkg/apperr"
	"github.com/sbauctions/archive/pkg/archive"
	"github.com/sbauctions/archive/pkg/coldstore"
	"github.com/sbauctions/archive/pkg/config"
	"github.com/sbauctions/archive/pkg/filter"
	"github.com/sbauctions/archive/pkg/httpx"
	"github.com/sbauctions/archive/pkg/ingest"
	"github.com/sbauctions/archive/pkg/query"
	"github.com/sbauctions/archive/pkg/restore"
	"github.com/sbauctions/archive/pkg/server/monitor"
)

var startTime = time.Now()

// Handlers carries every collaborator the HTTP surface needs.
type Handlers struct {
	Engine   *query.Engine
	Cold     *coldstore.Store
	Restore  *restore.Service
	Offset   *ingest.Offset
	Migrator *archive.Migrator
	Pool     *ingest.Pool
	Hub      *ingest.SalesHub

	MigrationMonitor *monitor.MigrationMonitor
	StorageMonitor   *monitor.StorageMonitor
}

// queryFilters flattens the query string into the raw filter map (first
// value wins).
func queryFilters(r *http.Request) map[string]string {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	raw := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return raw
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("server", fmt.Errorf("bad uuid: %w", err))
	}
	return id, nil
}

// HandleGetAuction returns the combined view of one auction.
func (h *Handlers) HandleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	combined, err := h.Engine.GetCombined(r.Context(), id)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, combined)
}

// HandleGetVersions returns every stored version of one auction.
func (h *Handlers) HandleGetVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	versions, err := h.Engine.GetVersions(r.Context(), id)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, versions)
}

// HandleRecentOverview returns the 12 most recent sales of a tag.
func (h *Handlers) HandleRecentOverview(w http.ResponseWriter, r *http.Request) {
	previews, err := h.Engine.RecentOverview(r.Context(), mux.Vars(r)["tag"], queryFilters(r))
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, previews)
}

// priceWindow applies the "days" shorthand: a float clamped to [0, 2]
// converted into an EndAfter bound.
func priceWindow(raw map[string]string) map[string]string {
	v, ok := raw["days"]
	if !ok {
		return raw
	}
	delete(raw, "days")
	days, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return raw
	}
	if days < 0 {
		days = 0
	}
	if days > 2 {
		days = 2
	}
	raw[filter.KeyEndAfter] = strconv.FormatInt(
		time.Now().UTC().Add(-time.Duration(days*24*float64(time.Hour))).Unix(), 10)
	return raw
}

// HandlePriceSummary returns the folded price summary for a tag.
func (h *Handlers) HandlePriceSummary(w http.ResponseWriter, r *http.Request) {
	raw := priceWindow(queryFilters(r))
	rows, err := h.Engine.Summary(r.Context(), mux.Vars(r)["tag"], raw)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(config.PriceSummaryCacheTTL.Seconds())))
	httpx.RespondJSON(w, http.StatusOK, query.FoldSummary(rows))
}

// HandlePriceHistory returns the per-day aggregates for a tag.
func (h *Handlers) HandlePriceHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Engine.Summary(r.Context(), mux.Vars(r)["tag"], queryFilters(r))
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(config.PriceHistoryCacheTTL.Seconds())))
	httpx.RespondJSON(w, http.StatusOK, rows)
}

// HandleRestoreInsert re-inserts one auction into the legacy SQL
// database from whichever tier still has it.
func (h *Handlers) HandleRestoreInsert(w http.ResponseWriter, r *http.Request) {
	if h.Restore == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "legacy database not configured")
		return
	}
	id, err := pathUUID(r)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	combined, err := h.Engine.GetCombined(r.Context(), id)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	if err := h.Restore.Insert(r.Context(), *combined); err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"restored": id.String()})
}

// HandleRestoreDelete removes one auction from the legacy SQL database,
// but only after confirming the archive holds a matching copy.
func (h *Handlers) HandleRestoreDelete(w http.ResponseWriter, r *http.Request) {
	if h.Restore == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "legacy database not configured")
		return
	}
	id, err := pathUUID(r)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}

	if h.Cold == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "archive disabled, refusing to delete")
		return
	}
	archived, err := h.Cold.Lookup(r.Context(), id)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	if len(archived) == 0 {
		httpx.RespondAppError(w, apperr.NotFound("server.RestoreDelete",
			fmt.Errorf("auction %s is not archived", id)))
		return
	}

	if err := h.Restore.Delete(r.Context(), id); err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"deleted": id.String()})
}

// HandleSetOffset sets the migrator checkpoint.
func (h *Handlers) HandleSetOffset(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		httpx.RespondAppError(w, apperr.InvalidInput("server.SetOffset", err))
		return
	}
	if err := h.Offset.Force(r.Context(), n); err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]int64{"offset": h.Offset.Get()})
}

// HandleArchiveMonths lists a tag's archived months.
func (h *Handlers) HandleArchiveMonths(w http.ResponseWriter, r *http.Request) {
	if h.Cold == nil {
		httpx.RespondJSON(w, http.StatusOK, []coldstore.Month{})
		return
	}
	months, err := h.Cold.Months(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, months)
}

// HandleArchiveMonth fetches one archived month's auctions.
func (h *Handlers) HandleArchiveMonth(w http.ResponseWriter, r *http.Request) {
	if h.Cold == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "archive disabled")
		return
	}
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		httpx.RespondAppError(w, apperr.InvalidInput("server.ArchiveMonth", err))
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		httpx.RespondAppError(w, apperr.InvalidInput("server.ArchiveMonth",
			fmt.Errorf("bad month %q", vars["month"])))
		return
	}
	records, err := h.Cold.GetMonth(r.Context(), vars["tag"], year, month)
	if err != nil {
		httpx.RespondAppError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, records)
}

// HandleMigrate triggers a manual migration run in the background.
func (h *Handlers) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	if h.Migrator == nil {
		httpx.RespondErrorString(w, http.StatusServiceUnavailable, "archive disabled")
		return
	}
	go runMigration(h.Migrator, h.MigrationMonitor)
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"migration": "started"})
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Migration monitor.MigrationStatus `json:"migration"`
}

// HandleHealth returns service health status.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := h.MigrationMonitor.IsHealthy()
	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	httpx.RespondJSON(w, code, HealthResponse{
		Status:    status,
		Version:   "1.0.0",
		Uptime:    time.Since(startTime).String(),
		Migration: h.MigrationMonitor.Status(),
	})
}

// StatsResponse is the /v1/stats body.
type StatsResponse struct {
	IngestQueueDepth int     `json:"ingest_queue_depth"`
	ImportOffset     int64   `json:"import_offset"`
	MasterBloomFPR   float64 `json:"master_bloom_fpr,omitempty"`
	StorageUsedBytes int64   `json:"storage_used_bytes,omitempty"`
	StorageMaxBytes  int64   `json:"storage_max_bytes,omitempty"`
}

// HandleStats reports ingest backlog, offset, bloom saturation, and
// disk usage.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}
	if h.Pool != nil {
		resp.IngestQueueDepth = h.Pool.Len()
	}
	if h.Offset != nil {
		resp.ImportOffset = h.Offset.Get()
	}
	if h.Cold != nil {
		resp.MasterBloomFPR = h.Cold.EstimatedFPR()
	}
	if h.StorageMonitor != nil {
		if used, err := h.StorageMonitor.GetUsage(); err == nil {
			resp.StorageUsedBytes = used
		}
		resp.StorageMaxBytes = h.StorageMonitor.GetLimit()
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, h *Handlers) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auction/{uuid}", h.HandleGetAuction).Methods("GET")
	api.HandleFunc("/auction/{uuid}", h.HandleGetVersions).Methods("POST")
	api.HandleFunc("/auctions/tag/{tag}/recent/overview", h.HandleRecentOverview).Methods("GET")
	api.HandleFunc("/prices/item/price/{tag}", h.HandlePriceSummary).Methods("GET")
	api.HandleFunc("/prices/item/price/{tag}/history", h.HandlePriceHistory).Methods("GET")
	api.HandleFunc("/restore/{uuid}", h.HandleRestoreInsert).Methods("POST")
	api.HandleFunc("/restore/{uuid}", h.HandleRestoreDelete).Methods("DELETE")
	api.HandleFunc("/archive/{tag}/months", h.HandleArchiveMonths).Methods("GET")
	api.HandleFunc("/archive/{tag}/{year}/{month}", h.HandleArchiveMonth).Methods("GET")
	api.HandleFunc("/archive/migrate", h.HandleMigrate).Methods("POST")

	router.HandleFunc("/import/offset", h.HandleSetOffset).Methods("POST")

	router.HandleFunc("/healthz", h.HandleHealth).Methods("GET")
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/stats", h.HandleStats).Methods("GET")
	if h.Hub != nil {
		v1.HandleFunc("/ws", h.Hub.HandleWebSocket()).Methods("GET")
	}
}
