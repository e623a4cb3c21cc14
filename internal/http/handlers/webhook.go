// Package handlers holds the HTTP surface: the Evolution webhook that feeds
// the conversation engine and the admin session dashboard.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/saudeflow/agendabot/pkg/logging"
)

// TurnHandler is the conversation entry point. The webhook acknowledges the
// delivery immediately and runs the turn detached.
type TurnHandler interface {
	HandleTurn(ctx context.Context, identity, instance, text, profileName string)
}

// WebhookHandler receives Evolution API message events.
type WebhookHandler struct {
	turns       TurnHandler
	logger      *logging.Logger
	turnTimeout time.Duration
}

// NewWebhookHandler builds the webhook endpoint. turns is required.
func NewWebhookHandler(turns TurnHandler, logger *logging.Logger) *WebhookHandler {
	if turns == nil {
		panic("handlers: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{turns: turns, logger: logger, turnTimeout: 2 * time.Minute}
}

// evolutionEvent mirrors the Evolution API webhook payload. Events arrive
// either bare or wrapped in a body envelope, and sometimes as a one-element
// array.
type evolutionEvent struct {
	Body         *evolutionBody `json:"body"`
	Instance     string         `json:"instance"`
	InstanceName string         `json:"instanceName"`
	Data         *evolutionData `json:"data"`
}

type evolutionBody struct {
	Instance     string         `json:"instance"`
	InstanceName string         `json:"instanceName"`
	Data         *evolutionData `json:"data"`
}

type evolutionData struct {
	Key      evolutionKey      `json:"key"`
	PushName string            `json:"pushName"`
	Message  *evolutionMessage `json:"message"`
}

type evolutionKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type evolutionMessage struct {
	Conversation        string         `json:"conversation"`
	ExtendedTextMessage *textContainer `json:"extendedTextMessage"`
	ImageMessage        *captioned     `json:"imageMessage"`
	VideoMessage        *captioned     `json:"videoMessage"`
	AudioMessage        map[string]any `json:"audioMessage"`
}

type textContainer struct {
	Text string `json:"text"`
}

type captioned struct {
	Caption string `json:"caption"`
}

// inbound is the normalized (identity, instance, text) triple.
type inbound struct {
	identity string
	instance string
	text     string
	name     string
	fromMe   bool
	audio    bool
}

// parseEvent normalizes an event into the inbound triple.
func parseEvent(ev *evolutionEvent) inbound {
	data := ev.Data
	instance := ev.InstanceName
	if instance == "" {
		instance = ev.Instance
	}
	if ev.Body != nil {
		if ev.Body.Data != nil {
			data = ev.Body.Data
		}
		if ev.Body.InstanceName != "" {
			instance = ev.Body.InstanceName
		} else if ev.Body.Instance != "" {
			instance = ev.Body.Instance
		}
	}
	if data == nil {
		return inbound{}
	}

	in := inbound{
		identity: data.Key.RemoteJid,
		instance: instance,
		fromMe:   data.Key.FromMe,
		name:     data.PushName,
	}
	if in.name == "" {
		in.name = "Cliente"
	}
	if m := data.Message; m != nil {
		switch {
		case m.Conversation != "":
			in.text = m.Conversation
		case m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "":
			in.text = m.ExtendedTextMessage.Text
		case m.ImageMessage != nil && m.ImageMessage.Caption != "":
			in.text = m.ImageMessage.Caption
		case m.VideoMessage != nil && m.VideoMessage.Caption != "":
			in.text = m.VideoMessage.Caption
		}
		in.audio = m.AudioMessage != nil
	}
	return in
}

// validate returns the reason an inbound event should be ignored, or "".
func (in inbound) validateReason() string {
	switch {
	case in.identity == "":
		return "telefoneCliente não encontrado"
	case in.instance == "":
		return "instancia não encontrada"
	case in.fromMe:
		return "mensagem enviada pelo bot"
	case in.text == "" && !in.audio:
		return "mensagem vazia"
	default:
		return ""
	}
}

// Handle accepts the webhook, acks immediately, and processes the turn in the
// background so the channel never waits on LLM or backend latency.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.logger.Warn("webhook decode", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid payload"})
		return
	}

	// Events may come as a one-element array.
	var ev evolutionEvent
	if len(raw) > 0 && raw[0] == '[' {
		var events []evolutionEvent
		if err := json.Unmarshal(raw, &events); err != nil || len(events) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid payload"})
			return
		}
		ev = events[0]
	} else if err := json.Unmarshal(raw, &ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid payload"})
		return
	}

	in := parseEvent(&ev)
	if reason := in.validateReason(); reason != "" {
		h.logger.Warn("webhook ignored", "reason", reason)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": reason})
		return
	}

	if in.audio && in.text == "" {
		h.logger.Info("audio message received, not supported")
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "audio messages not supported yet"})
		return
	}

	go func(in inbound) {
		ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
		defer cancel()
		h.turns.HandleTurn(ctx, in.identity, in.instance, in.text, in.name)
	}(in)

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "message received and processing"})
}

// Health reports liveness.
func (h *WebhookHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "agendabot",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
