package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"github.com/kozaktomas/site-photos/internal/web/workspace"
)

// keepAliveInterval spaces comment lines that keep idle streams open
// through proxies.
const keepAliveInterval = 30 * time.Second

// Events streams the workspace's notifications and upload progress as
// server-sent events until the client disconnects or the workspace closes.
func Events(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := ws.Events.AddListener()
	defer ws.Events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", ws.Session.Snapshot())

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == workspace.EventClosed {
				return
			}
		}
	}
}

// sendSSEEvent writes one event in text/event-stream framing.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
