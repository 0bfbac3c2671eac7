package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/auth"
	"github.com/n3tuk/maintenance-gate/internal/events"
	"github.com/n3tuk/maintenance-gate/internal/metrics"
	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// Messages returned to clients.
const (
	MsgActivated    = "Modo de manutenção ativado com sucesso"
	MsgDeactivated  = "Modo de manutenção desativado com sucesso"
	ErrInvalidBody  = "Dados inválidos"
	ErrLoadStatus   = model.ErrLoadStatus
	ErrChangeStatus = model.ErrChangeStatus
)

const maxRequestBodySize = 64 << 10

// Store is the part of the repository the handlers use directly.
type Store interface {
	LatestMaintenance(ctx context.Context) (*model.MaintenanceRecord, error)
	SaveMaintenance(ctx context.Context, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error)
}

// StatusSource serves the cached public status and can force a refresh.
type StatusSource interface {
	Current(ctx context.Context) model.Status
	Refresh(ctx context.Context) model.Status
}

// MaintenanceHandlers provides the maintenance status endpoints.
type MaintenanceHandlers struct {
	store     Store
	status    StatusSource
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewMaintenanceHandlers creates a new MaintenanceHandlers instance.
func NewMaintenanceHandlers(store Store, status StatusSource, publisher events.Publisher, logger *zap.Logger, m *metrics.Metrics) *MaintenanceHandlers {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &MaintenanceHandlers{
		store:     store,
		status:    status,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// HandleGetAdminStatus handles GET /api/admin/manutencao. It reads the store
// directly so administrators see their own writes immediately.
// Returns:
//   - 200 OK: current record, or the inactive default when none exists
//   - 500 Internal Server Error: the store could not be read
func (h *MaintenanceHandlers) HandleGetAdminStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.LatestMaintenance(r.Context())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.respondJSON(w, http.StatusOK, model.StatusResponse{Success: true, Data: model.AdminStatus{}})
	case err != nil:
		h.logger.Error("Failed to load maintenance status", zap.Error(err))
		h.respondJSON(w, http.StatusInternalServerError, model.StatusResponse{Success: false, Error: ErrLoadStatus})
	default:
		h.respondJSON(w, http.StatusOK, model.StatusResponse{Success: true, Data: rec.AdminStatus()})
	}
}

// HandleSetStatus handles POST /api/admin/manutencao. Every call appends a
// new record; the cached public status catches up when its entry expires.
// Returns:
//   - 200 OK: record written
//   - 400 Bad Request: body is not a status update
//   - 500 Internal Server Error: the store rejected the write
func (h *MaintenanceHandlers) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var update model.StatusUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&update); err != nil {
		h.logger.Warn("Failed to decode status update", zap.Error(err))
		h.respondJSON(w, http.StatusBadRequest, model.WriteResponse{Success: false, Error: ErrInvalidBody})
		return
	}

	adminID := auth.SessionID(r)

	stored, err := h.store.SaveMaintenance(r.Context(), update.NewRecord(h.now()))
	if h.metrics != nil {
		h.metrics.ObserveWrite(update.Active, err)
	}
	if err != nil {
		h.logger.Error("Failed to change maintenance status",
			zap.Bool("active", update.Active),
			zap.String("admin_id", adminID),
			zap.Error(err),
		)
		h.respondJSON(w, http.StatusInternalServerError, model.WriteResponse{Success: false, Error: ErrChangeStatus})
		return
	}

	h.logger.Info("Maintenance status changed",
		zap.Int64("record_id", stored.ID),
		zap.Bool("active", stored.Active),
		zap.String("message", stored.Message),
		zap.String("created_by", stored.CreatedBy),
		zap.String("admin_id", adminID),
	)

	h.publish(r.Context(), stored, adminID)

	msg := MsgDeactivated
	if stored.Active {
		msg = MsgActivated
	}
	h.respondJSON(w, http.StatusOK, model.WriteResponse{Success: true, Message: msg})
}

// HandleRefreshCache handles POST /api/admin/manutencao/cache by discarding
// the cached status and returning the freshly read one.
func (h *MaintenanceHandlers) HandleRefreshCache(w http.ResponseWriter, r *http.Request) {
	current := h.status.Refresh(r.Context())

	h.logger.Info("Maintenance status cache refreshed",
		zap.Bool("active", current.Active),
		zap.String("admin_id", auth.SessionID(r)),
	)

	h.respondJSON(w, http.StatusOK, model.StatusResponse{Success: true, Data: current})
}

// HandlePublicStatus handles GET /api/sistema/status. It never fails: store
// problems surface as the inactive status.
func (h *MaintenanceHandlers) HandlePublicStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.respondJSON(w, http.StatusOK, model.StatusResponse{Success: true, Data: h.status.Current(r.Context())})
}

// publish announces a stored record. Failures are logged only; the write
// has already succeeded.
func (h *MaintenanceHandlers) publish(ctx context.Context, rec *model.MaintenanceRecord, adminID string) {
	status := "success"
	defer func() {
		if h.metrics != nil {
			h.metrics.EventsPublishedTotal.WithLabelValues(status).Inc()
		}
	}()

	ev, err := events.NewStatusChanged(rec, adminID)
	if err == nil {
		err = h.publisher.Publish(ctx, events.TopicStatusChanged, ev)
	}
	if err != nil {
		status = "error"
		h.logger.Warn("Failed to publish status change", zap.Int64("record_id", rec.ID), zap.Error(err))
	}
}

// respondJSON sends a JSON response.
func (h *MaintenanceHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
