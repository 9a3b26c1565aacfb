// Partner HTTP handlers.
//
// Partner-only endpoints: profile, availability, live location, work stats,
// and the earnings ledger with its calendar-window summary.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateStatusRequest is the JSON payload for changing availability.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReportLocationRequest is the JSON payload for a live position update.
type ReportLocationRequest struct {
	Lat      float64 `json:"lat" binding:"required"`
	Lng      float64 `json:"lng" binding:"required"`
	Heading  float64 `json:"heading"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// GetPartnerProfile returns the calling partner's profile with its
// role-specific section.
func (h *Handlers) GetPartnerProfile(c *gin.Context) {
	p, err := h.partnerSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePartnerStatus switches the caller between available, busy, and offline.
func (h *Handlers) UpdatePartnerStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.partnerSvc.SetStatus(c.Request.Context(), userID(c), req.Status); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// GetPartnerStats returns cumulative figures plus the in-flight work count.
func (h *Handlers) GetPartnerStats(c *gin.Context) {
	st, err := h.partnerSvc.Stats(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// ReportLocation stores the caller's live position (last write wins).
func (h *Handlers) ReportLocation(c *gin.Context) {
	var req ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.partnerSvc.ReportLocation(c.Request.Context(), userID(c), req.Lat, req.Lng, req.Heading, req.SpeedKmh); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// GetEarningsSummary returns today/week/month/total earnings windows.
func (h *Handlers) GetEarningsSummary(c *gin.Context) {
	sum, err := h.earnSvc.Summary(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// ListEarnings returns the caller's ledger entries, newest first.
func (h *Handlers) ListEarnings(c *gin.Context) {
	items, err := h.earnSvc.List(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"earnings": items})
}
