package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"attendly/internal/host"
	"attendly/internal/models"
	"attendly/internal/rotation"
	"attendly/internal/store"
	"attendly/internal/util"
	"attendly/internal/verify"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventHandler serves event administration and viewer polling.
type EventHandler struct {
	Store        *store.Gorm
	PublicOrigin string
	Clock        clock.Clock
	// LeaseDuration is reported to polling hosts so they can size their heartbeat.
	LeaseDuration time.Duration
}

func NewEventHandler(s *store.Gorm, publicOrigin string, clk clock.Clock, leaseDuration time.Duration) *EventHandler {
	return &EventHandler{
		Store:         s,
		PublicOrigin:  strings.TrimRight(publicOrigin, "/"),
		Clock:         clk,
		LeaseDuration: leaseDuration,
	}
}

// ---------- request/response ----------

type eventReq struct {
	Name                    string  `json:"name" binding:"required,max=255"`
	SeasonID                *string `json:"season_id"`
	RotationEnabled         bool    `json:"rotation_enabled"`
	RotationIntervalSeconds int     `json:"rotation_interval_seconds"`
	IdentityCheckEnabled    bool    `json:"identity_check_enabled"`
	IdentityStrict          bool    `json:"identity_strict"`
	GeofenceEnabled         bool    `json:"geofence_enabled"`
	GeofenceLat             float64 `json:"geofence_lat"`
	GeofenceLng             float64 `json:"geofence_lng"`
	GeofenceRadiusMeters    float64 `json:"geofence_radius_meters"`
}

type eventResp struct {
	ID                      string    `json:"id"`
	SeasonID                *string   `json:"season_id"`
	Name                    string    `json:"name"`
	Active                  bool      `json:"active"`
	RotationEnabled         bool      `json:"rotation_enabled"`
	RotationIntervalSeconds int       `json:"rotation_interval_seconds"`
	IdentityCheckEnabled    bool      `json:"identity_check_enabled"`
	IdentityStrict          bool      `json:"identity_strict"`
	GeofenceEnabled         bool      `json:"geofence_enabled"`
	GeofenceLat             float64   `json:"geofence_lat"`
	GeofenceLng             float64   `json:"geofence_lng"`
	GeofenceRadiusMeters    float64   `json:"geofence_radius_meters"`
	CreatedAt               time.Time `json:"created_at"`
}

func toEventResp(e *models.Event) eventResp {
	return eventResp{
		ID:                      e.ID,
		SeasonID:                e.SeasonID,
		Name:                    e.Name,
		Active:                  e.Active,
		RotationEnabled:         e.RotationEnabled,
		RotationIntervalSeconds: e.RotationIntervalSeconds,
		IdentityCheckEnabled:    e.IdentityCheckEnabled,
		IdentityStrict:          e.IdentityStrict,
		GeofenceEnabled:         e.GeofenceEnabled,
		GeofenceLat:             e.GeofenceLat,
		GeofenceLng:             e.GeofenceLng,
		GeofenceRadiusMeters:    e.GeofenceRadiusMeters,
		CreatedAt:               e.CreatedAt,
	}
}

// apply copies validated settings onto e, clamping interval and radius.
func (h *EventHandler) apply(c *gin.Context, req *eventReq, e *models.Event) bool {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "name is required")
		return false
	}
	if req.GeofenceEnabled {
		if err := util.ValidateCoordinates(req.GeofenceLat, req.GeofenceLng); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return false
		}
	}
	if req.SeasonID != nil && *req.SeasonID == "" {
		req.SeasonID = nil
	}
	if req.SeasonID != nil {
		if _, ok := ownedSeason(c, h.Store, *req.SeasonID); !ok {
			return false
		}
	}

	e.Name = name
	e.SeasonID = req.SeasonID
	e.RotationEnabled = req.RotationEnabled
	e.RotationIntervalSeconds = rotation.ClampInterval(req.RotationIntervalSeconds)
	e.IdentityCheckEnabled = req.IdentityCheckEnabled
	e.IdentityStrict = req.IdentityStrict
	e.GeofenceEnabled = req.GeofenceEnabled
	e.GeofenceLat = req.GeofenceLat
	e.GeofenceLng = req.GeofenceLng
	e.GeofenceRadiusMeters = verify.ClampRadius(req.GeofenceRadiusMeters)
	return true
}

// ---------- CRUD ----------

func (h *EventHandler) CreateEvent(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	var req eventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	ev := models.Event{ID: uuid.NewString(), OrganizerID: organizerID}
	if !h.apply(c, &req, &ev) {
		return
	}
	if err := h.Store.CreateEvent(c.Request.Context(), &ev); err != nil {
		_ = c.Error(err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to save event")
		return
	}
	util.Success(c, util.Response{"event": toEventResp(&ev)})
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	events, err := h.Store.ListEvents(c.Request.Context(), organizerID)
	if err != nil {
		storeError(c, err, "events")
		return
	}
	items := make([]eventResp, 0, len(events))
	for i := range events {
		items = append(items, toEventResp(&events[i]))
	}
	util.Success(c, util.Response{"items": items})
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	util.Success(c, util.Response{"event": toEventResp(ev)})
}

// UpdateEvent rewrites the settings. On an active event, toggling rotation swaps the
// token between the static sentinel and the host-driven rotation.
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	var req eventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if !h.apply(c, &req, ev) {
		return
	}
	if err := h.Store.UpdateEventSettings(c.Request.Context(), ev); err != nil {
		storeError(c, err, "event")
		return
	}
	h.respondFresh(c, ev.ID)
}

func (h *EventHandler) StartEvent(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	if err := h.Store.StartEvent(c.Request.Context(), ev.ID, ev.RotationEnabled); err != nil {
		storeError(c, err, "event")
		return
	}
	h.respondFresh(c, ev.ID)
}

func (h *EventHandler) StopEvent(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	if err := h.Store.StopEvent(c.Request.Context(), ev.ID); err != nil {
		storeError(c, err, "event")
		return
	}
	h.respondFresh(c, ev.ID)
}

func (h *EventHandler) respondFresh(c *gin.Context, id string) {
	ev, err := h.Store.GetEvent(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "event")
		return
	}
	util.Success(c, util.Response{"event": toEventResp(ev)})
}

// ---------- viewer polling ----------

// State is what every organizer view polls at the rotation cadence.
func (h *EventHandler) State(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	snap := host.SnapshotOf(ev)
	resp := util.Response{
		"state":         snap,
		"server_time":   h.Clock.Now().UTC(),
		"lease_seconds": int(h.LeaseDuration / time.Second),
	}
	if snap.Active && snap.Token != "" {
		resp["scan_url"] = ScanURL(h.PublicOrigin, ev.ID, snap.Token)
	}
	util.Success(c, resp)
}

// ScanURL is the address encoded in the displayed QR code.
func ScanURL(origin, eventID, token string) string {
	return origin + "/attend/" + url.PathEscape(eventID) + "?token=" + url.QueryEscape(token)
}
