package handler

import (
	"errors"
	"net/http"
	"strconv"

	"attendly/internal/middleware"
	"attendly/internal/models"
	"attendly/internal/store"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

func currentOrganizer(c *gin.Context) (string, bool) {
	id, ok := middleware.CurrentOrganizer(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
	}
	return id, ok
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// storeError answers a failed store call. Missing rows are 404s, unique violations 409s,
// anything else a 500.
func storeError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, what+" not found")
		return
	case errors.Is(err, store.ErrDuplicate):
		util.Error(c, http.StatusConflict, util.CodeConflict, what+" already exists")
		return
	}
	_ = c.Error(err)
	util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load "+what)
}

// ownedEvent loads the event named by the :id parameter. Events of other organizers are
// reported as missing.
func ownedEvent(c *gin.Context, s *store.Gorm) (*models.Event, bool) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return nil, false
	}
	ev, err := s.GetEvent(c.Request.Context(), c.Param("id"))
	if err == nil && ev.OrganizerID != organizerID {
		err = store.ErrNotFound
	}
	if err != nil {
		storeError(c, err, "event")
		return nil, false
	}
	return ev, true
}

func ownedSeason(c *gin.Context, s *store.Gorm, id string) (*models.Season, bool) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return nil, false
	}
	season, err := s.GetSeason(c.Request.Context(), id)
	if err == nil && season.OrganizerID != organizerID {
		err = store.ErrNotFound
	}
	if err != nil {
		storeError(c, err, "season")
		return nil, false
	}
	return season, true
}

func pagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
