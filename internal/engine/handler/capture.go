package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rentora/internal/engine/middleware"
	"rentora/internal/engine/service/intake"
	"rentora/internal/engine/service/listing"
)

// CaptureHandler serves the voice capture session endpoints.
type CaptureHandler struct {
	intake   *intake.Service
	listings *listing.Service
}

func NewCaptureHandler(in *intake.Service, listings *listing.Service) *CaptureHandler {
	return &CaptureHandler{intake: in, listings: listings}
}

func (h *CaptureHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Locale          string `json:"locale"`
		ListingTypeHint string `json:"listingTypeHint"`
		MIMEType        string `json:"mimeType"`
		Supported       *bool  `json:"supported"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	sess := middleware.SessionFrom(r.Context())
	supported := in.Supported == nil || *in.Supported
	id, err := h.intake.Open(r.Context(), intake.OpenRequest{
		OwnerKey:        sess.Key,
		Locale:          in.Locale,
		ListingTypeHint: in.ListingTypeHint,
		MIMEType:        in.MIMEType,
		Supported:       supported,
	})
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"error":    err.Error(),
			"fallback": "manual",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     id,
		"status": intake.StatusRecording,
	})
}

func (h *CaptureHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	v, err := h.intake.View(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CaptureHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.intake.Stop(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.intake.View(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CaptureHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.intake.Retry(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": intake.StatusRecording,
	})
}

func (h *CaptureHandler) HandleConfirmField(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path := r.PathValue("path")
	if err := h.intake.ConfirmField(id, path); err != nil {
		writeError(w, err)
		return
	}
	h.HandleState(w, r)
}

func (h *CaptureHandler) HandleSaveField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	var value any
	if len(in.Value) > 0 {
		if err := json.Unmarshal(in.Value, &value); err != nil {
			http.Error(w, "invalid field value", http.StatusBadRequest)
			return
		}
	}
	if err := h.intake.SaveField(r.PathValue("id"), r.PathValue("path"), value); err != nil {
		writeError(w, err)
		return
	}
	h.HandleState(w, r)
}

func (h *CaptureHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	m := h.listings.Machine(r.Context(), sess.Key)
	if err := h.intake.Release(r.Context(), r.PathValue("id"), m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.State())
}

func (h *CaptureHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.intake.Close(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

const (
	audioWSWriteWait = 10 * time.Second
	audioWSPongWait  = 60 * time.Second
)

var audioWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleAudioWS streams the recording over a websocket: binary frames carry
// audio, a "stop" text frame ends the session and the final state comes back
// as JSON before the socket closes.
func (h *CaptureHandler) HandleAudioWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.intake.View(id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := audioWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(audioWSPongWait)); err != nil {
		log.Printf("audio ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(audioWSPongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Socket dropped mid-recording: stop and keep whatever was
			// buffered so the session can still extract.
			if stopErr := h.intake.Stop(r.Context(), id); stopErr != nil {
				log.Printf("audio ws stop after disconnect: %v", stopErr)
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(audioWSPongWait)); err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			if err := h.intake.Append(id, data); err != nil {
				h.writeAudioWS(conn, map[string]any{"type": "error", "message": err.Error()})
				return
			}
		case websocket.TextMessage:
			if strings.TrimSpace(strings.ToLower(string(data))) != "stop" {
				h.writeAudioWS(conn, map[string]any{"type": "error", "message": "unsupported command"})
				continue
			}
			if err := h.intake.Stop(r.Context(), id); err != nil {
				h.writeAudioWS(conn, map[string]any{"type": "error", "message": err.Error()})
				return
			}
			v, err := h.intake.View(id)
			if err != nil {
				h.writeAudioWS(conn, map[string]any{"type": "error", "message": err.Error()})
				return
			}
			h.writeAudioWS(conn, map[string]any{"type": "result", "session": v})
			return
		}
	}
}

func (h *CaptureHandler) writeAudioWS(conn *websocket.Conn, out map[string]any) {
	if err := conn.SetWriteDeadline(time.Now().Add(audioWSWriteWait)); err != nil {
		return
	}
	if err := conn.WriteJSON(out); err != nil {
		log.Printf("audio ws write failed: %v", err)
	}
}
