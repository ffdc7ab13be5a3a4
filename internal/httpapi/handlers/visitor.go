package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JoseManaure/portfolio-server/internal/store"
)

const (
	visitorCookie    = "visitor_token"
	visitorCookieTTL = 365 * 24 * time.Hour
	geoTimeout       = 10 * time.Second
)

// CreateVisitor registers an anonymous visit. Geolocation is filled in
// asynchronously; the response never waits on it.
func (h *Handler) CreateVisitor(c *gin.Context) {
	visitorID := uuid.NewString()
	ip := clientIP(c)

	visitor := &store.Visitor{
		VisitorID: visitorID,
		IP:        ip,
		UserAgent: c.GetHeader("User-Agent"),
	}
	if err := h.Store.CreateVisitor(c.Request.Context(), visitor); err != nil {
		h.Log.Errorw("visitor create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "no se pudo registrar la visita"})
		return
	}

	go h.enrichLocation(visitorID, ip)

	if token, err := h.visitorToken(visitorID); err == nil {
		c.SetCookie(visitorCookie, token, int(visitorCookieTTL.Seconds()), "/", "", false, true)
	} else {
		h.Log.Warnw("visitor token signing failed", "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "visitorId": visitorID})
}

func (h *Handler) enrichLocation(visitorID, ip string) {
	if h.Geo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), geoTimeout)
	defer cancel()

	loc, err := h.Geo.Lookup(ctx, ip)
	if err != nil {
		h.Log.Warnw("geolocation lookup failed", "visitor_id", visitorID, "ip", ip, "error", err)
		return
	}
	err = h.Store.SetVisitorLocation(ctx, visitorID, store.Location{
		Country: loc.Country,
		City:    loc.City,
		Lat:     loc.Lat,
		Lon:     loc.Lon,
	})
	if err != nil {
		h.Log.Warnw("visitor location update failed", "visitor_id", visitorID, "error", err)
	}
}

func (h *Handler) visitorToken(visitorID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   visitorID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(visitorCookieTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.Cfg.JWTSecret))
}

// clientIP prefers the first X-Forwarded-For hop, the shape the tunnel and
// Railway proxies produce.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return c.ClientIP()
}

// History returns persisted transcripts, newest first.
func (h *Handler) History(c *gin.Context) {
	filter := store.Filter{
		SessionID: c.Query("sessionId"),
		BeforeID:  c.Query("before"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	chats, err := h.Store.ListTranscripts(c.Request.Context(), filter)
	if err != nil {
		h.Log.Errorw("history query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching chat history"})
		return
	}
	if chats == nil {
		chats = []store.Transcript{}
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// Root is the liveness line the tunnel dashboards poll.
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Backend Relay de José Manaure corriendo con SSE y llama-server.")
}
