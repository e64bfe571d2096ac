package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"attendly/internal/models"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LogHandler serves the organizer's audit trail.
type LogHandler struct {
	DB         *gorm.DB
	EncryptKey string
}

func NewLogHandler(db *gorm.DB, encryptKey string) *LogHandler {
	return &LogHandler{
		DB:         db,
		EncryptKey: encryptKey,
	}
}

type logResp struct {
	ID        uint      `json:"id"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	Status    int       `json:"status"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *LogHandler) plain(l *models.AuditLog) (path, action string) {
	path, action = l.Path, l.Action
	if path == "" && l.PathEnc != "" {
		path = util.DecryptField(h.EncryptKey, l.PathEnc)
	}
	if action == "" && l.ActionEnc != "" {
		action = util.DecryptField(h.EncryptKey, l.ActionEnc)
	}
	return path, action
}

// ListLogs lists the organizer's audit entries (paged, optional date range and method).
func (h *LogHandler) ListLogs(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	page, size := pagination(c)

	base := h.DB.WithContext(c.Request.Context()).Model(&models.AuditLog{}).Where("organizer_id = ?", organizerID)

	// start / end, YYYY-MM-DD
	if s := c.Query("start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid start date")
			return
		}
		base = base.Where("created_at >= ?", t)
	}
	if s := c.Query("end"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid end date")
			return
		}
		base = base.Where("created_at < ?", t.Add(24*time.Hour))
	}
	if m := strings.ToUpper(strings.TrimSpace(c.Query("method"))); m != "" {
		base = base.Where("method = ?", m)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	var logs []models.AuditLog
	if err := base.
		Order("created_at DESC, id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&logs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	items := make([]logResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		path, action := h.plain(l)
		items = append(items, logResp{
			ID:        l.ID,
			Action:    action,
			Path:      path,
			Method:    l.Method,
			Status:    l.Status,
			IP:        l.IP,
			UserAgent: l.UserAgent,
			CreatedAt: l.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// moderationOp names the moderation action an audited request performed, or "".
func moderationOp(method, path string) string {
	switch {
	case method == http.MethodPut && strings.HasPrefix(path, "/api/records/") && strings.HasSuffix(path, "/status"):
		return "status changed"
	case method == http.MethodDelete && strings.HasPrefix(path, "/api/records/"):
		return "record deleted"
	case method == http.MethodPost && strings.HasSuffix(path, "/suggestions/apply"):
		return "suggestion applied"
	case method == http.MethodPost && strings.HasSuffix(path, "/suggestions/dismiss"):
		return "suggestion dismissed"
	}
	return ""
}

// ListModerationHistory lists the moderation actions among the organizer's audit entries,
// with the decoded request details.
func (h *LogHandler) ListModerationHistory(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	page, size := pagination(c)

	// paths may be encrypted, so filtering happens after decryption
	var all []models.AuditLog
	if err := h.DB.WithContext(c.Request.Context()).
		Where("organizer_id = ? AND method IN ?", organizerID, []string{http.MethodPut, http.MethodPost, http.MethodDelete}).
		Order("created_at DESC, id DESC").
		Find(&all).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	type historyResp struct {
		ID        uint           `json:"id"`
		Operation string         `json:"operation"`
		Path      string         `json:"path"`
		Status    int            `json:"status"`
		Details   map[string]any `json:"details,omitempty"`
		IP        string         `json:"ip"`
		CreatedAt time.Time      `json:"created_at"`
	}

	var items []historyResp
	for i := range all {
		l := &all[i]
		path, action := h.plain(l)
		op := moderationOp(l.Method, path)
		if op == "" {
			continue
		}
		item := historyResp{ID: l.ID, Operation: op, Path: path, Status: l.Status, IP: l.IP, CreatedAt: l.CreatedAt}
		if start, end := strings.Index(action, "{"), strings.LastIndex(action, "}"); start >= 0 && end > start {
			var details map[string]any
			if json.Unmarshal([]byte(action[start:end+1]), &details) == nil {
				item.Details = details
			}
		}
		items = append(items, item)
	}

	total := len(items)
	from := min((page-1)*size, total)
	to := min(from+size, total)
	pageItems := items[from:to]
	if pageItems == nil {
		pageItems = []historyResp{}
	}

	util.Success(c, util.Response{
		"items": pageItems,
		"total": total,
		"page":  page,
		"size":  size,
	})
}
