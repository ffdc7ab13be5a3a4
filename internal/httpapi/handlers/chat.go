package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type chatReq struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
}

// PostChat is the non-streaming path: one prompt in, one JSON reply out.
func (h *Handler) PostChat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Falta prompt"})
		return
	}

	turn, err := h.Engine.Respond(c.Request.Context(), req.SessionID, req.Prompt)
	if err != nil {
		h.Log.Errorw("chat failed", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generando respuesta"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": turn.Reply, "source": turn.Source})
}

// heartbeatInterval keeps idle SSE connections from being reaped by
// intermediaries.
const heartbeatInterval = 15 * time.Second

// ChatSSE streams the reply as `data: <text>` events and always terminates
// with the [END] sentinel, including on upstream failure.
func (h *Handler) ChatSSE(c *gin.Context) {
	prompt := c.Query("prompt")
	sessionID := c.Query("sessionId")
	if prompt == "" {
		c.String(http.StatusBadRequest, "Falta prompt")
		return
	}

	events, err := h.Engine.Stream(c.Request.Context(), sessionID, prompt)
	if err != nil {
		c.String(http.StatusBadRequest, "Falta prompt")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "data: [END]\n\n")
		return
	}

	write := func(payload string) {
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		flusher.Flush()
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			flusher.Flush()

		case ev, chOpen := <-events:
			if !chOpen || ev.Done {
				write("[END]")
				return
			}
			if ev.Err != nil {
				write("Detalle técnico: " + ev.Err.Error())
				continue
			}
			write(ev.Text)
		}
	}
}
