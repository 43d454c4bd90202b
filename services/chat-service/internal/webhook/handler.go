// Package webhook receives gateway callbacks: connection state changes and
// inbound messages. The gateway retries on non-success, so the handler
// acknowledges with 200 no matter what happened internally.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agendapet/agendapet/libs/petshop"
)

type Engine interface {
	HandleMessage(ctx context.Context, instance, sender, text string) error
}

type ChannelStore interface {
	UpdateChannelStatus(ctx context.Context, instance string, status petshop.ChannelStatus) error
}

type Handler struct {
	engine   Engine
	channels ChannelStore
	logger   *slog.Logger
}

func NewHandler(engine Engine, channels ChannelStore, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, channels: channels, logger: logger}
}

type envelope struct {
	Event        string          `json:"event"`
	Instance     string          `json:"instance"`
	InstanceName string          `json:"instanceName"`
	State        string          `json:"state"`
	Data         json.RawMessage `json:"data"`
}

type connectionData struct {
	State    string `json:"state"`
	Status   string `json:"status"`
	Instance string `json:"instance"`
}

type inboundMessage struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Message messageContent `json:"message"`
}

type messageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	EphemeralMessage struct {
		Message *messageContent `json:"message"`
	} `json:"ephemeralMessage"`
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer ack(w)

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.logger.Error("webhook payload decode failed", "err", err)
		return
	}

	instance := env.Instance
	if instance == "" {
		instance = env.InstanceName
	}
	if instance == "" && len(env.Data) > 0 {
		var d connectionData
		if json.Unmarshal(env.Data, &d) == nil {
			instance = d.Instance
		}
	}
	if instance == "" {
		h.logger.Warn("webhook without instance name", "event", env.Event)
		return
	}

	switch strings.ToLower(env.Event) {
	case "connection_update", "connection.update":
		h.handleConnectionUpdate(r.Context(), instance, env)
	case "messages_upsert", "messages.upsert":
		h.handleMessages(r.Context(), instance, env.Data)
	default:
		h.logger.Debug("ignoring webhook event", "event", env.Event, "instance", instance)
	}
}

// ack always reports success to the gateway to prevent redelivery storms.
func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (h *Handler) handleConnectionUpdate(ctx context.Context, instance string, env envelope) {
	state := env.State
	if len(env.Data) > 0 {
		var d connectionData
		if json.Unmarshal(env.Data, &d) == nil {
			if d.State != "" {
				state = d.State
			} else if d.Status != "" {
				state = d.Status
			}
		}
	}

	status := petshop.ChannelPending
	switch state {
	case "open", "connected":
		status = petshop.ChannelConnected
	case "close", "disconnected":
		status = petshop.ChannelDisconnected
	}

	if err := h.channels.UpdateChannelStatus(ctx, instance, status); err != nil {
		h.logger.Error("channel status update failed", "instance", instance, "err", err)
		return
	}
	h.logger.Info("channel status updated", "instance", instance, "state", state, "status", status)
}

func (h *Handler) handleMessages(ctx context.Context, instance string, data json.RawMessage) {
	var messages []inboundMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		var single inboundMessage
		if err := json.Unmarshal(data, &single); err != nil {
			h.logger.Error("message payload decode failed", "instance", instance, "err", err)
			return
		}
		messages = []inboundMessage{single}
	}

	for _, msg := range messages {
		if msg.Key.FromMe {
			continue
		}
		sender := msg.Key.RemoteJid
		if sender == "" || strings.HasSuffix(sender, "@g.us") {
			continue
		}
		text := msg.Message.text()
		if text == "" {
			continue
		}

		if err := h.engine.HandleMessage(ctx, instance, sender, text); err != nil {
			h.logger.Error("message handling failed", "instance", instance, "err", err)
		}
	}
}

func (m messageContent) text() string {
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	if m.EphemeralMessage.Message != nil {
		return m.EphemeralMessage.Message.text()
	}
	return ""
}
