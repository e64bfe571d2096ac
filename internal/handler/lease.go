package handler

import (
	"net/http"
	"time"

	"attendly/internal/lease"
	"attendly/internal/rotation"
	"attendly/internal/store"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

// LeaseHandler exposes the host lease and rotation to out-of-process hosts. Losing a
// lease is a normal answer (held=false), never an error status.
type LeaseHandler struct {
	Store       *store.Gorm
	Coordinator *lease.Coordinator
	Engine      *rotation.Engine
}

func NewLeaseHandler(s *store.Gorm, c *lease.Coordinator, e *rotation.Engine) *LeaseHandler {
	return &LeaseHandler{Store: s, Coordinator: c, Engine: e}
}

type holderReq struct {
	HolderID string `json:"holder_id" binding:"required,max=64"`
	Stop     bool   `json:"stop"`
}

type leaseResp struct {
	Held         bool       `json:"held"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LeaseSeconds int        `json:"lease_seconds"`
}

func (h *LeaseHandler) bind(c *gin.Context) (string, holderReq, bool) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return "", holderReq{}, false
	}
	var req holderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "holder_id is required")
		return "", holderReq{}, false
	}
	return ev.ID, req, true
}

func (h *LeaseHandler) respond(c *gin.Context, l lease.Lease) {
	resp := leaseResp{Held: l.Held, LeaseSeconds: int(h.Coordinator.Duration() / time.Second)}
	if l.Held {
		resp.ExpiresAt = &l.ExpiresAt
	}
	util.Success(c, util.Response{"lease": resp})
}

func (h *LeaseHandler) Claim(c *gin.Context) {
	eventID, req, ok := h.bind(c)
	if !ok {
		return
	}
	l, err := h.Coordinator.Claim(c.Request.Context(), eventID, req.HolderID)
	if err != nil {
		storeError(c, err, "lease")
		return
	}
	h.respond(c, l)
}

func (h *LeaseHandler) Renew(c *gin.Context) {
	eventID, req, ok := h.bind(c)
	if !ok {
		return
	}
	l, err := h.Coordinator.Renew(c.Request.Context(), eventID, req.HolderID)
	if err != nil {
		storeError(c, err, "lease")
		return
	}
	h.respond(c, l)
}

// Release is the advisory hand-off sent by a departing host.
func (h *LeaseHandler) Release(c *gin.Context) {
	eventID, req, ok := h.bind(c)
	if !ok {
		return
	}
	released, err := h.Coordinator.Release(c.Request.Context(), eventID, req.HolderID, req.Stop)
	if err != nil {
		storeError(c, err, "lease")
		return
	}
	util.Success(c, util.Response{"released": released})
}

// Rotate publishes a new token on behalf of the lease holder.
func (h *LeaseHandler) Rotate(c *gin.Context) {
	eventID, req, ok := h.bind(c)
	if !ok {
		return
	}
	tok, rotated, err := h.Engine.Rotate(c.Request.Context(), eventID, req.HolderID)
	if err != nil {
		storeError(c, err, "event")
		return
	}
	resp := util.Response{"rotated": rotated}
	if rotated {
		resp["token"] = tok.Value
		resp["expires_at"] = tok.ExpiresAt
	}
	util.Success(c, resp)
}
