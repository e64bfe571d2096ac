package middleware

import (
	"bytes"
	"io"
	"net/http"

	"attendly/internal/models"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAuditBody = 2000

// AuditMiddleware records organizer mutations. Path and action are stored encrypted when
// an encryption key is configured, in plain text otherwise.
func AuditMiddleware(db *gorm.DB, encryptKey string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		organizerID, ok := CurrentOrganizer(c)
		if !ok {
			return
		}

		path := c.Request.URL.Path
		action := c.Request.Method + " " + path
		if len(bodyBytes) > 0 && len(bodyBytes) < maxAuditBody {
			action += " " + string(bodyBytes)
		}

		entry := models.AuditLog{
			OrganizerID: organizerID,
			Method:      c.Request.Method,
			Status:      c.Writer.Status(),
			IP:          c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
		}
		if encryptKey == "" {
			entry.Path, entry.Action = path, action
		} else {
			var err error
			if entry.PathEnc, err = util.EncryptField(encryptKey, path); err == nil {
				entry.ActionEnc, err = util.EncryptField(encryptKey, action)
			}
			if err != nil {
				log.Error("encrypt audit entry", zap.Error(err))
				return
			}
		}

		if err := db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
			log.Error("write audit entry", zap.Error(err))
		}
	}
}
