package handler

import (
	"net/http"
	"time"

	"attendly/internal/attendance"
	"attendly/internal/verify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClientIDCookie holds the attendee's long-lived client identifier.
const ClientIDCookie = "attendly_cid"

// AttendanceHandler serves the attendee endpoints. Their bodies use the attendee wire
// shape rather than the organizer envelope.
type AttendanceHandler struct {
	Manager      *attendance.Manager
	CookieMaxAge time.Duration
	SecureCookie bool
	Log          *zap.Logger
}

func NewAttendanceHandler(m *attendance.Manager, cookieMaxAge time.Duration, secure bool, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{Manager: m, CookieMaxAge: cookieMaxAge, SecureCookie: secure, Log: log}
}

type startReq struct {
	EventID  string `json:"eventId"`
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

type startResp struct {
	Authorized       bool                  `json:"authorized"`
	Reason           attendance.Reason     `json:"reason,omitempty"`
	Event            *attendance.EventInfo `json:"event,omitempty"`
	SessionID        string                `json:"sessionId,omitempty"`
	SessionExpiresAt *time.Time            `json:"sessionExpiresAt,omitempty"`
	ClientID         string                `json:"clientId,omitempty"`
}

type submitReq struct {
	SessionID      string        `json:"sessionId"`
	Token          string        `json:"token"`
	ClientID       string        `json:"clientId"`
	AttendeeName   string        `json:"attendeeName"`
	AttendeeEmail  string        `json:"attendeeEmail"`
	Location       *verify.Point `json:"location"`
	LocationDenied bool          `json:"locationDenied"`
}

type submitResp struct {
	Success bool              `json:"success"`
	Reason  attendance.Reason `json:"reason,omitempty"`
}

func statusFor(r attendance.Reason) int {
	switch r {
	case attendance.ReasonInvalidRequest:
		return http.StatusBadRequest
	case attendance.ReasonServerError:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (h *AttendanceHandler) clientID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if v, err := c.Cookie(ClientIDCookie); err == nil {
		return v
	}
	return ""
}

// StartSession validates a scan and opens a session.
func (h *AttendanceHandler) StartSession(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, startResp{Reason: attendance.ReasonInvalidRequest})
		return
	}

	res, err := h.Manager.Start(c.Request.Context(), attendance.StartRequest{
		EventID:  req.EventID,
		Token:    req.Token,
		ClientID: h.clientID(c, req.ClientID),
	})
	if err != nil {
		h.Log.Error("start session", zap.String("event", req.EventID), zap.Error(err))
	}

	if res.ClientID != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(ClientIDCookie, res.ClientID, int(h.CookieMaxAge/time.Second), "/", "", h.SecureCookie, true)
	}
	resp := startResp{
		Authorized: res.Authorized,
		Reason:     res.Reason,
		Event:      res.Event,
		SessionID:  res.SessionID,
		ClientID:   res.ClientID,
	}
	if res.Authorized {
		expires := res.SessionExpiresAt
		resp.SessionExpiresAt = &expires
	}
	c.JSON(statusFor(res.Reason), resp)
}

// Submit records the attendance for a session.
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, submitResp{Reason: attendance.ReasonInvalidRequest})
		return
	}

	res, err := h.Manager.Submit(c.Request.Context(), attendance.SubmitRequest{
		SessionID:      req.SessionID,
		Token:          req.Token,
		ClientID:       h.clientID(c, req.ClientID),
		AttendeeName:   req.AttendeeName,
		AttendeeEmail:  req.AttendeeEmail,
		Location:       req.Location,
		LocationDenied: req.LocationDenied,
	})
	if err != nil {
		h.Log.Error("submit attendance", zap.String("session", req.SessionID), zap.Error(err))
	}
	c.JSON(statusFor(res.Reason), submitResp{Success: res.Success, Reason: res.Reason})
}
