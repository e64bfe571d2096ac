package handler

import (
	"net/http"
	"strings"
	"time"

	"attendly/internal/models"
	"attendly/internal/store"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SeasonHandler struct {
	Store *store.Gorm
}

func NewSeasonHandler(s *store.Gorm) *SeasonHandler {
	return &SeasonHandler{Store: s}
}

type seasonReq struct {
	Name string `json:"name" binding:"required,max=255"`
}

type seasonResp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *SeasonHandler) CreateSeason(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	var req seasonReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	season := models.Season{ID: uuid.NewString(), OrganizerID: organizerID, Name: strings.TrimSpace(req.Name)}
	if err := h.Store.CreateSeason(c.Request.Context(), &season); err != nil {
		_ = c.Error(err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to save season")
		return
	}
	util.Success(c, util.Response{"season": seasonResp{ID: season.ID, Name: season.Name, CreatedAt: season.CreatedAt}})
}

func (h *SeasonHandler) ListSeasons(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	seasons, err := h.Store.ListSeasons(c.Request.Context(), organizerID)
	if err != nil {
		storeError(c, err, "seasons")
		return
	}
	items := make([]seasonResp, 0, len(seasons))
	for _, s := range seasons {
		items = append(items, seasonResp{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt})
	}
	util.Success(c, util.Response{"items": items})
}
