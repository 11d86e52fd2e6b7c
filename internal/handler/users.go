package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pulse/internal/admission"
)

type UserHandler struct {
	Gate *admission.Gate
}

func (h *UserHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/users")
	group.GET("/:id/eligibility", h.eligibility)
}

type eligibilityResponse struct {
	Allowed        bool       `json:"allowed"`
	Reason         string     `json:"reason,omitempty"`
	InWindow       int        `json:"inWindow"`
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"`
}

// @Summary Clock-in eligibility preview
// @Description Advisory; the clock-in endpoint re-checks against the signal log.
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Param venueId query string false "include the same-venue cooldown for this venue"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/users/{id}/eligibility [get]
func (h *UserHandler) eligibility(c *gin.Context) {
	e, err := h.Gate.Eligibility(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("venueId")))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, eligibilityResponse{
		Allowed:        e.Allowed,
		Reason:         string(e.Reason),
		InWindow:       e.InWindow,
		NextEligibleAt: e.NextEligibleAt,
	}, nil)
}
