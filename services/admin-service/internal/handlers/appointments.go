// Package handlers is the dashboard-facing CRUD surface. Requests are tenant
// scoped via the X-Tenant-Id header set by the front proxy after auth.
// Status changes go through the dashboard transition rules, which allow
// completing and reopening on top of what the chat engine may do.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendapet/agendapet/libs/petshop"
)

type Store interface {
	List(ctx context.Context, tenantID, fromDate string, status petshop.Status) ([]petshop.Appointment, error)
	GetByID(ctx context.Context, tenantID, id string) (petshop.Appointment, error)
	Create(ctx context.Context, appt petshop.Appointment) (petshop.Appointment, error)
	SetStatus(ctx context.Context, tenantID, id string, from, to petshop.Status) (bool, error)
	UpdateSchedule(ctx context.Context, tenantID, id, date, timeOfDay string) (bool, error)
	Delete(ctx context.Context, tenantID, id string) (bool, error)
	GetProfile(ctx context.Context, tenantID string) (petshop.BusinessProfile, error)
	UpdateProfile(ctx context.Context, p petshop.BusinessProfile) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", h.SetStatus)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/schedule", h.SetSchedule)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/profile", h.GetProfile)
	mux.HandleFunc("PUT /api/v1/profile", h.PutProfile)
}

func tenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type appointmentResponse struct {
	ID             string     `json:"id"`
	PetName        string     `json:"pet_name"`
	OwnerName      string     `json:"owner_name"`
	OwnerPhone     string     `json:"owner_phone"`
	Service        string     `json:"service"`
	Date           string     `json:"date"`
	Time           string     `json:"time"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResponse(a petshop.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:             a.ID,
		PetName:        a.PetName,
		OwnerName:      a.OwnerName,
		OwnerPhone:     a.OwnerPhone,
		Service:        a.Service,
		Date:           a.Date,
		Time:           a.Time,
		Status:         string(a.Status),
		Notes:          a.Notes,
		ReminderSentAt: a.ReminderSentAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	status := petshop.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}
	fromDate := r.URL.Query().Get("from")
	if fromDate != "" && !validDate(fromDate) {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}

	appts, err := h.store.List(r.Context(), tenant, fromDate, status)
	if err != nil {
		h.logger.Error("appointment list failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type createRequest struct {
	PetName    string `json:"pet_name"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
	Service    string `json:"service"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PetName = strings.TrimSpace(req.PetName)
	req.Service = strings.TrimSpace(req.Service)
	if req.PetName == "" || req.Service == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	if !validDate(req.Date) || !validTime(req.Time) {
		http.Error(w, "invalid date or time", http.StatusBadRequest)
		return
	}
	// The dashboard may book a walk-in as confirmed directly; anything else
	// starts pending.
	status := petshop.StatusPending
	switch req.Status {
	case "", string(petshop.StatusPending):
	case string(petshop.StatusConfirmed):
		status = petshop.StatusConfirmed
	default:
		http.Error(w, "initial status must be pending or confirmed", http.StatusBadRequest)
		return
	}

	created, err := h.store.Create(r.Context(), petshop.Appointment{
		TenantID:   tenant,
		PetName:    req.PetName,
		OwnerName:  strings.TrimSpace(req.OwnerName),
		OwnerPhone: petshop.NormalizePhone(req.OwnerPhone),
		Service:    req.Service,
		Date:       req.Date,
		Time:       req.Time,
		Status:     status,
		Notes:      req.Notes,
	})
	if err != nil {
		h.logger.Error("appointment create failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(created))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	target := petshop.Status(req.Status)
	if !target.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	current, err := h.store.GetByID(r.Context(), tenant, id)
	if errors.Is(err, pgx.ErrNoRows) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("appointment load failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if !petshop.CanTransition(current.Status, target, true) {
		http.Error(w, "invalid status transition", http.StatusConflict)
		return
	}

	// Conditional on the status just read; a concurrent chat mutation makes
	// this lose cleanly instead of overwriting it.
	updated, err := h.store.SetStatus(r.Context(), tenant, id, current.Status, target)
	if err != nil {
		h.logger.Error("status update failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "appointment changed concurrently, retry", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(target)})
}

type setScheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	var req setScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !validDate(req.Date) || !validTime(req.Time) {
		http.Error(w, "invalid date or time", http.StatusBadRequest)
		return
	}

	updated, err := h.store.UpdateSchedule(r.Context(), tenant, id, req.Date, req.Time)
	if err != nil {
		h.logger.Error("schedule update failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "date": req.Date, "time": req.Time})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	deleted, err := h.store.Delete(r.Context(), tenant, id)
	if err != nil {
		h.logger.Error("appointment delete failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
