package handler

import (
	"errors"
	"net/http"

	"attendly/internal/store"
	"attendly/internal/suggest"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

// SuggestionHandler serves duplicate-identity suggestions for a season.
type SuggestionHandler struct {
	Store   *store.Gorm
	Service *suggest.Service
}

func NewSuggestionHandler(s *store.Gorm, svc *suggest.Service) *SuggestionHandler {
	return &SuggestionHandler{Store: s, Service: svc}
}

type applyReq struct {
	CanonicalEmail string `json:"canonical_email" binding:"required"`
	DuplicateEmail string `json:"duplicate_email" binding:"required"`
	Name           string `json:"name"`
}

type dismissReq struct {
	EmailA string `json:"email_a" binding:"required"`
	EmailB string `json:"email_b" binding:"required"`
}

func suggestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, suggest.ErrSameEmail), errors.Is(err, suggest.ErrInvalidEmail), errors.Is(err, suggest.ErrInvalidName):
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
	default:
		storeError(c, err, "suggestions")
	}
}

func (h *SuggestionHandler) List(c *gin.Context) {
	season, ok := ownedSeason(c, h.Store, c.Param("id"))
	if !ok {
		return
	}
	list, err := h.Service.List(c.Request.Context(), season.ID)
	if err != nil {
		suggestError(c, err)
		return
	}
	if list == nil {
		list = []suggest.Suggestion{}
	}
	util.Success(c, util.Response{"items": list})
}

// Apply merges a suggested pair onto the chosen canonical email.
func (h *SuggestionHandler) Apply(c *gin.Context) {
	season, ok := ownedSeason(c, h.Store, c.Param("id"))
	if !ok {
		return
	}
	var req applyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	n, err := h.Service.Apply(c.Request.Context(), season.ID, req.CanonicalEmail, req.DuplicateEmail, req.Name)
	if err != nil {
		suggestError(c, err)
		return
	}
	util.Success(c, util.Response{"updated": n})
}

func (h *SuggestionHandler) Dismiss(c *gin.Context) {
	season, ok := ownedSeason(c, h.Store, c.Param("id"))
	if !ok {
		return
	}
	var req dismissReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := h.Service.Dismiss(c.Request.Context(), season.ID, req.EmailA, req.EmailB); err != nil {
		suggestError(c, err)
		return
	}
	util.Success(c, util.Response{"dismissed": true})
}
