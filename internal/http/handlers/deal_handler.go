// Deal HTTP handlers.
//
// Negotiation is asymmetric: only the partner proposes and counters terms,
// while only the wisher accepts or rejects them. Both sides can read the deal
// and its full offer history.
//
//   - POST /wishes/{id}/deals      (partner proposes terms, claims the wish)
//   - GET  /deals                  (partner's deals)
//   - GET  /deals/{id}             (detail with offer log)
//   - POST /deals/{id}/counter     (partner revises terms)
//   - POST /deals/{id}/accept      (wisher locks the terms)
//   - POST /deals/{id}/reject      (wisher walks away, wish rematches)
//   - POST /deals/{id}/start       (partner begins the work)
//   - POST /deals/{id}/complete    (partner finishes, settles at the agreed price)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/services"
)

// ProposeDealRequest is the JSON payload for proposing or countering terms.
type ProposeDealRequest struct {
	Price    float64 `json:"price" binding:"required,gt=0"`
	Schedule string  `json:"schedule"`
	Notes    string  `json:"notes"`
}

// ProposeDeal opens a negotiation on a wish with the partner's initial terms.
func (h *Handlers) ProposeDeal(c *gin.Context) {
	id, okID := wishID(c)
	if !okID {
		return
	}
	var req ProposeDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.dealSvc.Propose(c.Request.Context(), userID(c), id, services.ProposeInput{
		Price:    req.Price,
		Schedule: req.Schedule,
		Notes:    req.Notes,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDeals returns the calling partner's deals, newest first.
func (h *Handlers) ListDeals(c *gin.Context) {
	items, err := h.dealSvc.ListForPartner(c.Request.Context(), userID(c), clampLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deals": items})
}

// GetDeal returns a deal with its complete offer history.
func (h *Handlers) GetDeal(c *gin.Context) {
	id, okID := dealID(c)
	if !okID {
		return
	}
	d, err := h.dealSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// CounterDeal appends revised terms to an open negotiation.
func (h *Handlers) CounterDeal(c *gin.Context) {
	id, okID := dealID(c)
	if !okID {
		return
	}
	var req ProposeDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.dealSvc.Counter(c.Request.Context(), userID(c), id, services.ProposeInput{
		Price:    req.Price,
		Schedule: req.Schedule,
		Notes:    req.Notes,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// AcceptDeal locks the current terms. Wisher only.
func (h *Handlers) AcceptDeal(c *gin.Context) {
	h.dealAction(c, h.dealSvc.Accept)
}

// RejectDeal abandons the negotiation and releases the wish. Wisher only.
func (h *Handlers) RejectDeal(c *gin.Context) {
	h.dealAction(c, h.dealSvc.Reject)
}

// StartDeal moves an accepted deal into in_progress. Partner only.
func (h *Handlers) StartDeal(c *gin.Context) {
	h.dealAction(c, h.dealSvc.Start)
}

// CompleteDeal finishes the work and settles at the negotiated price. Partner only.
func (h *Handlers) CompleteDeal(c *gin.Context) {
	h.dealAction(c, h.dealSvc.Complete)
}

// dealAction runs a (caller, dealID) service call and writes the updated deal.
func (h *Handlers) dealAction(c *gin.Context, fn func(ctx context.Context, callerID, dealID string) (*domain.Deal, error)) {
	id, okID := dealID(c)
	if !okID {
		return
	}
	d, err := fn(c.Request.Context(), userID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// dealID validates the :id path param as a UUID.
func dealID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deal id must be a UUID")
		return "", false
	}
	return id, true
}
