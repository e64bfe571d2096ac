package handler

import (
	"net/http"
	"time"

	"attendly/internal/models"
	"attendly/internal/store"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

// RecordHandler serves attendance moderation.
type RecordHandler struct {
	Store *store.Gorm
}

func NewRecordHandler(s *store.Gorm) *RecordHandler {
	return &RecordHandler{Store: s}
}

type recordResp struct {
	ID               uint                `json:"id"`
	EventID          string              `json:"event_id"`
	AttendeeName     string              `json:"attendee_name"`
	AttendeeEmail    string              `json:"attendee_email"`
	Status           models.RecordStatus `json:"status"`
	SuspiciousReason *string             `json:"suspicious_reason"`
	LocationProvided bool                `json:"location_provided"`
	LocationLat      *float64            `json:"location_lat,omitempty"`
	LocationLng      *float64            `json:"location_lng,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toRecordResp(r *models.AttendanceRecord) recordResp {
	return recordResp{
		ID:               r.ID,
		EventID:          r.EventID,
		AttendeeName:     r.AttendeeName,
		AttendeeEmail:    r.AttendeeEmail,
		Status:           r.Status,
		SuspiciousReason: r.SuspiciousReason,
		LocationProvided: r.LocationProvided,
		LocationLat:      r.LocationLat,
		LocationLng:      r.LocationLng,
		CreatedAt:        r.CreatedAt,
	}
}

// ownedRecord loads the record named by :id if its event belongs to the organizer.
func (h *RecordHandler) ownedRecord(c *gin.Context) (*models.AttendanceRecord, bool) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return nil, false
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	rec, err := h.Store.GetRecord(c.Request.Context(), id)
	if err == nil {
		var ev *models.Event
		ev, err = h.Store.GetEvent(c.Request.Context(), rec.EventID)
		if err == nil && ev.OrganizerID != organizerID {
			err = store.ErrNotFound
		}
	}
	if err != nil {
		storeError(c, err, "record")
		return nil, false
	}
	return rec, true
}

// ListRecords lists an event's records, newest first, optionally by status.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	ev, ok := ownedEvent(c, h.Store)
	if !ok {
		return
	}
	status := models.RecordStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid status")
		return
	}
	page, size := pagination(c)

	recs, total, err := h.Store.ListRecords(c.Request.Context(), store.RecordFilter{
		EventID: ev.ID,
		Status:  status,
		Limit:   size,
		Offset:  (page - 1) * size,
	})
	if err != nil {
		storeError(c, err, "records")
		return
	}

	items := make([]recordResp, 0, len(recs))
	for i := range recs {
		items = append(items, toRecordResp(&recs[i]))
	}
	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

type statusReq struct {
	Status models.RecordStatus `json:"status" binding:"required"`
}

// UpdateRecordStatus applies a moderation decision.
func (h *RecordHandler) UpdateRecordStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "status must be verified, suspicious, cleared or excused")
		return
	}
	rec, ok := h.ownedRecord(c)
	if !ok {
		return
	}
	if err := h.Store.UpdateRecordStatus(c.Request.Context(), rec.ID, req.Status); err != nil {
		storeError(c, err, "record")
		return
	}
	rec.Status = req.Status
	util.Success(c, util.Response{"record": toRecordResp(rec)})
}

func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	rec, ok := h.ownedRecord(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteRecord(c.Request.Context(), rec.ID); err != nil {
		storeError(c, err, "record")
		return
	}
	util.Success(c, util.Response{"id": rec.ID})
}
