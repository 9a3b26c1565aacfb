// Wish HTTP handlers.
//
// This file exposes REST endpoints for the wish lifecycle:
//   - POST   /wishes                (post a wish, triggers matching)
//   - GET    /wishes                (wisher's own wishes)
//   - GET    /wishes/available      (open wishes an agent can claim)
//   - GET    /wishes/assigned       (wishes assigned to the calling partner)
//   - GET    /wishes/{id}           (detail)
//   - GET    /wishes/{id}/track     (partner position + arrival estimate)
//   - POST   /wishes/{id}/accept    (partner claims / confirms)
//   - POST   /wishes/{id}/decline   (partner bows out, rematches)
//   - POST   /wishes/{id}/start     (partner begins the work)
//   - POST   /wishes/{id}/complete  (partner finishes, settles payment)
//   - POST   /wishes/{id}/cancel    (wisher cancels)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wishloop/go-market-backend/internal/services"
)

//
// DTOs
//

// CreateWishRequest is the JSON payload for posting a wish.
type CreateWishRequest struct {
	Category     string     `json:"category" binding:"required"`
	Title        string     `json:"title" binding:"required,min=1,max=255"`
	Description  string     `json:"description"`
	Address      string     `json:"address"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	RadiusKm     float64    `json:"radius_km"`
	Remuneration float64    `json:"remuneration" binding:"required,gt=0"`
	Immediate    bool       `json:"immediate"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

//
// Handlers
//

// CreateWish posts a new wish for the current user and immediately attempts a
// match against the partner directory. The response carries the wish in its
// post-matching status (matched when a partner was found, searching otherwise).
func (h *Handlers) CreateWish(c *gin.Context) {
	var req CreateWishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	w, err := h.wishSvc.Create(c.Request.Context(), userID(c), services.CreateWishInput{
		Category:     strings.TrimSpace(req.Category),
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Address:      req.Address,
		Lat:          req.Lat,
		Lng:          req.Lng,
		RadiusKm:     req.RadiusKm,
		Remuneration: req.Remuneration,
		Immediate:    req.Immediate,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

// ListWishes returns the current user's own wishes, newest first.
func (h *Handlers) ListWishes(c *gin.Context) {
	items, err := h.wishSvc.ListForWisher(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wishes": items})
}

// ListAvailableWishes returns open wishes the calling agent could claim,
// filtered to the categories the agent serves.
func (h *Handlers) ListAvailableWishes(c *gin.Context) {
	items, err := h.wishSvc.ListAvailable(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wishes": items})
}

// ListAssignedWishes returns wishes currently assigned to the calling partner.
func (h *Handlers) ListAssignedWishes(c *gin.Context) {
	items, err := h.wishSvc.ListAssigned(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wishes": items})
}

// GetWish returns a single wish visible to the caller.
func (h *Handlers) GetWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	w, err := h.wishSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// TrackWish reports the assigned partner's last known position and the
// estimated minutes until they reach the wish location.
func (h *Handlers) TrackWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	t, err := h.wishSvc.Track(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// AcceptWish claims an open wish (or confirms a matched one) for the calling
// partner and opens the chat room with the wisher.
func (h *Handlers) AcceptWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	w, room, err := h.wishSvc.Accept(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"wish": w, "room": room})
}

// DeclineWish releases a matched wish back to searching and reruns matching
// with the declining partner excluded.
func (h *Handlers) DeclineWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	if err := h.wishSvc.Decline(c.Request.Context(), userID(c), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// StartWish moves an accepted wish into in_progress.
func (h *Handlers) StartWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	w, err := h.wishSvc.Start(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// CompleteWish finishes the work and settles the remuneration in one step.
func (h *Handlers) CompleteWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	w, err := h.wishSvc.Complete(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// CancelWish cancels the wish on behalf of its owner.
func (h *Handlers) CancelWish(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	w, err := h.wishSvc.Cancel(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// wishID validates the :id path param as a UUID, failing the request when it
// is not one.
func wishID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "wish id must be a UUID")
		return "", false
	}
	return id, true
}
