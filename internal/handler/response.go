package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
)

// Context keys set by httpserver.AuthMiddleware.
const (
	CtxMentorID = "mentor_id"
	CtxRole     = "role"
)

// mentorID 取认证中间件写入的导师 ID
func mentorID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxMentorID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid project id"})
		return 0, false
	}
	return id, true
}

// respondError 将领域错误映射为 HTTP 状态码
func respondError(c *gin.Context, log *zap.Logger, err error) {
	log = logger.WithTrace(c.Request.Context(), log)

	var perr *progression.Error
	if !errors.As(err, &perr) {
		log.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		return
	}

	switch perr.Kind {
	case progression.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": perr.Message})
	case progression.KindAuthorization:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": perr.Message})
	case progression.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": perr.Message})
	case progression.KindConsistency:
		log.Error("Consistency violation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	default:
		log.Error("Dependency failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	}
}
