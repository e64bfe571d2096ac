package handler

import (
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

// GetMe returns the signed-in organizer (requires AuthMiddleware).
func GetMe(c *gin.Context) {
	organizerID, ok := currentOrganizer(c)
	if !ok {
		return
	}
	util.Success(c, util.Response{
		"organizer": gin.H{"id": organizerID},
	})
}
