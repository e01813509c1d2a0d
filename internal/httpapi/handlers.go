package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/queue"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups the authenticated agent-facing HTTP handlers for
// dependency injection. Keep these thin: parse/validate input, call internal
// services, map typed errors to statuses, return JSON.
//
// On ErrAlreadyClaimed / ErrInvalidState the client must re-fetch current
// state instead of retrying; a stale claim retried is a logic error, so these
// map to 409 and never to a retryable 5xx.
type Handlers struct {
	Auth     *auth.Manager
	Queue    *queue.Service
	Sessions *session.Service
	Reports  *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	ProfileID  string `json:"profile_id"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation happens upstream in the account service; this
// endpoint only mints tokens for already-verified identities.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ProfileID == "" || req.BusinessID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "profile_id, business_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.ProfileID, req.BusinessID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// --- Call actions ---

type callActionRequest struct {
	CallID string `json:"callId"`
}

type transferRequest struct {
	CallID              string `json:"callId"`
	TransferToProfileID string `json:"transferToProfileId"`
}

type endRequest struct {
	CallID  string `json:"callId"`
	Notes   string `json:"notes,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

func (h Handlers) Answer(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}
	var req callActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, err := h.Queue.Answer(c.Request.Context(), req.CallID, profileID)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": entry})
}

func (h Handlers) Hold(c *gin.Context) {
	h.simpleCallAction(c, h.Queue.Hold)
}

func (h Handlers) Resume(c *gin.Context) {
	h.simpleCallAction(c, h.Queue.Resume)
}

func (h Handlers) simpleCallAction(c *gin.Context, op func(ctx context.Context, callID string) (queue.Entry, error)) {
	var req callActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, err := op(c.Request.Context(), req.CallID)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": entry})
}

func (h Handlers) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	closed, created, err := h.Queue.Transfer(c.Request.Context(), req.CallID, req.TransferToProfileID)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": closed, "forwarded_call": created})
}

func (h Handlers) End(c *gin.Context) {
	var req endRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, err := h.Queue.End(c.Request.Context(), req.CallID, req.Notes, req.Outcome)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": entry})
}

func (h Handlers) GetCall(c *gin.Context) {
	businessID, err := auth.BusinessID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return
	}

	entry, err := h.Queue.GetEntry(c.Request.Context(), businessID, c.Param("id"))
	if err != nil {
		abortQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": entry})
}

// ListActive is the polling fallback: clients call it on a fixed interval
// regardless of push delivery.
func (h Handlers) ListActive(c *gin.Context) {
	businessID, err := auth.BusinessID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return
	}

	entries, err := h.Queue.ListActive(c.Request.Context(), businessID)
	if err != nil {
		abortQueueError(c, err)
		return
	}
	if entries == nil {
		entries = []queue.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}

// --- Sessions ---

type checkOutRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h Handlers) CheckIn(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}
	businessID, err := auth.BusinessID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return
	}

	sess, err := h.Sessions.CheckIn(c.Request.Context(), profileID, businessID, session.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

func (h Handlers) CheckOut(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}
	var req checkOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sess, err := h.Sessions.CheckOut(c.Request.Context(), profileID, req.SessionID)
	if err != nil {
		abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

// Disconnect is the browser-unload beacon. Always 204: the client is going
// away and cannot act on a failure; reconciliation covers a lost close.
func (h Handlers) Disconnect(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}
	h.Sessions.CloseOnDisconnect(c.Request.Context(), profileID)
	c.Status(http.StatusNoContent)
}

func (h Handlers) TodayTotal(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}

	total, err := h.Sessions.TodayTotal(c.Request.Context(), profileID)
	if err != nil {
		abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_seconds": total})
}

func (h Handlers) GetExtension(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}

	ext, err := h.Sessions.Extension(c.Request.Context(), profileID)
	if err != nil {
		abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extension": ext})
}

func (h Handlers) SetAvailability(c *gin.Context) {
	profileID, ok := identity(c)
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "available (bool) required"})
		return
	}

	if err := h.Sessions.SetAvailability(c.Request.Context(), profileID, *req.Available); err != nil {
		abortSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "available": *req.Available})
}

// --- Reports ---

func (h Handlers) AgentsToday(c *gin.Context) {
	businessID, err := auth.BusinessID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return
	}

	summaries, err := h.Reports.AgentsToday(c.Request.Context(), businessID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	if summaries == nil {
		summaries = []reporting.AgentDaySummary{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": summaries})
}

// --- helpers ---

func identity(c *gin.Context) (string, bool) {
	profileID, err := auth.ProfileID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "profile_id required"})
		return "", false
	}
	return profileID, true
}

func abortQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrAlreadyClaimed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already claimed"})
	case errors.Is(err, queue.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call is not in a valid state for this action"})
	case errors.Is(err, queue.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, queue.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func abortSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNoOpenSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no open session"})
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
