package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pulse/internal/admission"
	"pulse/internal/models"
)

type SignalHandler struct {
	Gate *admission.Gate
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/signals")
	group.POST("/clockin", h.clockIn)
	group.POST("/vibe", h.vibe)
}

type clockInRequest struct {
	VenueID          string `json:"venueId"`
	UserID           string `json:"userId"`
	ConsentMarketing bool   `json:"consentMarketing"`
}

type vibeRequest struct {
	VenueID        string   `json:"venueId"`
	UserID         string   `json:"userId"`
	ReportedStatus string   `json:"reportedStatus"`
	GamesUpdated   []string `json:"gamesUpdated,omitempty"`
}

type signalResponse struct {
	Accepted       bool       `json:"accepted"`
	SignalID       string     `json:"signalId,omitempty"`
	PointsAwarded  *int       `json:"pointsAwarded,omitempty"`
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
	Supersedes     string     `json:"supersedes,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// @Summary Clock in at a venue
// @Tags signals
// @Accept json
// @Produce json
// @Param body body clockInRequest true "clock-in"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 429 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/signals/clockin [post]
func (h *SignalHandler) clockIn(c *gin.Context) {
	var req clockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid json body", map[string]any{"reason": reasonInvalidSignal})
		return
	}
	h.submit(c, admission.Request{
		Kind:             models.SignalKindClockIn,
		UserID:           req.UserID,
		VenueID:          req.VenueID,
		ConsentMarketing: req.ConsentMarketing,
	})
}

// @Summary Report a venue vibe
// @Tags signals
// @Accept json
// @Produce json
// @Param body body vibeRequest true "vibe report"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/signals/vibe [post]
func (h *SignalHandler) vibe(c *gin.Context) {
	var req vibeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid json body", map[string]any{"reason": reasonInvalidSignal})
		return
	}
	h.submit(c, admission.Request{
		Kind:           models.SignalKindVibeReport,
		UserID:         req.UserID,
		VenueID:        req.VenueID,
		ReportedStatus: req.ReportedStatus,
		GamesUpdated:   req.GamesUpdated,
	})
}

func (h *SignalHandler) submit(c *gin.Context, req admission.Request) {
	res, err := h.Gate.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	body := signalResponse{
		Accepted:       res.Accepted,
		NextEligibleAt: res.NextEligibleAt,
		ValidUntil:     res.ValidUntil,
		Supersedes:     res.Supersedes,
		Reason:         string(res.Reason),
		Message:        res.Message,
	}
	if res.Signal != nil {
		pts := res.Signal.PointsAwarded
		body.SignalID = res.Signal.ID
		body.PointsAwarded = &pts
	}
	if res.Accepted {
		Ok(c, body, nil)
		return
	}
	if secs := int(math.Ceil(res.RetryAfter.Seconds())); secs > 0 {
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	status := http.StatusTooManyRequests
	if res.Reason == admission.ReasonComplianceDenied {
		status = http.StatusForbidden
	}
	Reject(c, status, res.Message, body)
}
