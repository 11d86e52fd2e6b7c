package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Pulse Service

Venue occupancy and vibe engine. Clients post clock-ins and vibe reports;
the service admits them under the LCB check-in limits and serves a decaying
per-venue pulse.

## Routes

- POST /api/v1/signals/clockin  {venueId, userId, consentMarketing}
- POST /api/v1/signals/vibe     {venueId, userId, reportedStatus, gamesUpdated}
- GET  /api/v1/venues/:id/pulse
- GET  /api/v1/venues/:id/pulse/stream   (websocket)
- GET  /api/v1/users/:id/eligibility?venueId=
- GET  /healthz
- GET  /readyz
- GET  /swagger/index.html

## Status codes

- 200 accepted
- 400 invalid_signal
- 403 compliance_denied (2 clock-ins per 12h)
- 429 rate_limited_same_venue / rate_limited_global
- 503 store_unavailable

## Auth

When server.require_bearer is on, /api/* requires a Bearer token. Token
validation is done by the gateway in front of this service.
`)
	})
}
