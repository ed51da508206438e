package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/vibefs/internal/handlers"
)

func registerResourceRoutes(r *gin.Engine, handler *handlers.ResourceHandler, limit gin.HandlerFunc) {
	r.GET("/f/:token/:filename", limit, handler.File)
	r.GET("/git/:token", limit, handler.Commit)
}
