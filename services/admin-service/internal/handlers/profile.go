package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/agendapet/agendapet/libs/petshop"
)

type profileResponse struct {
	ShopName      string             `json:"shop_name"`
	AssistantName string             `json:"assistant_name"`
	VoiceTone     string             `json:"voice_tone"`
	Services      []petshop.Service  `json:"services"`
	BusinessHours []petshop.DayHours `json:"business_hours"`
	Phone         string             `json:"phone"`
	Address       string             `json:"address"`
	Neighborhood  string             `json:"neighborhood"`
	City          string             `json:"city"`
	State         string             `json:"state"`
	InstanceName  string             `json:"instance_name"`
	ChannelStatus string             `json:"channel_status"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	p, err := h.store.GetProfile(r.Context(), tenant)
	if errors.Is(err, pgx.ErrNoRows) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("profile load failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ShopName:      p.ShopName,
		AssistantName: p.AssistantName,
		VoiceTone:     string(p.VoiceTone),
		Services:      p.Services,
		BusinessHours: p.BusinessHours,
		Phone:         p.Phone,
		Address:       p.Address,
		Neighborhood:  p.Neighborhood,
		City:          p.City,
		State:         p.State,
		InstanceName:  p.InstanceName,
		ChannelStatus: string(p.ChannelStatus),
	})
}

type putProfileRequest struct {
	ShopName      string             `json:"shop_name"`
	AssistantName string             `json:"assistant_name"`
	VoiceTone     string             `json:"voice_tone"`
	Services      []petshop.Service  `json:"services"`
	BusinessHours []petshop.DayHours `json:"business_hours"`
	Phone         string             `json:"phone"`
	Address       string             `json:"address"`
	Neighborhood  string             `json:"neighborhood"`
	City          string             `json:"city"`
	State         string             `json:"state"`
}

func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var req putProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopName = strings.TrimSpace(req.ShopName)
	if req.ShopName == "" {
		http.Error(w, "shop_name is required", http.StatusBadRequest)
		return
	}
	tone := petshop.VoiceTone(req.VoiceTone)
	switch tone {
	case petshop.ToneFormal, petshop.ToneFriendly, petshop.ToneFun:
	default:
		http.Error(w, "invalid voice_tone", http.StatusBadRequest)
		return
	}

	err := h.store.UpdateProfile(r.Context(), petshop.BusinessProfile{
		TenantID:      tenant,
		ShopName:      req.ShopName,
		AssistantName: strings.TrimSpace(req.AssistantName),
		VoiceTone:     tone,
		Services:      req.Services,
		BusinessHours: req.BusinessHours,
		Phone:         req.Phone,
		Address:       req.Address,
		Neighborhood:  req.Neighborhood,
		City:          req.City,
		State:         req.State,
	})
	if err != nil {
		h.logger.Error("profile update failed", "tenant_id", tenant, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
