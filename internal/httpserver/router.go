package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/handler"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/rbac"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
)

// ReadinessCheck 返回 nil 表示依赖就绪
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
	// key 作为 /readyz 失败时的 status，例如 db_not_ready
	Readiness map[string]ReadinessCheck
}

func NewRouter(
	progressionHandler *handler.ProgressionHandler,
	adminHandler *handler.AdminHandler,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", trace.HeaderName()},
		ExposeHeaders: []string{trace.HeaderName()},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for status, check := range cfg.Readiness {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"status": status, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/stages", progressionHandler.ListStages)

	auth := r.Group("/")
	auth.Use(AuthMiddleware(cfg.JWTSecret))
	{
		auth.POST("/projects/:id/ratings", RequirePermission(rbac.PermissionRatingCreate), progressionHandler.RecordRating)
		auth.GET("/projects/:id/ratings", RequirePermission(rbac.PermissionRatingRead), progressionHandler.ListRatings)
		auth.PUT("/projects/:id/approvals", RequirePermission(rbac.PermissionApprovalSet), progressionHandler.SetApproval)
		auth.GET("/projects/:id/approvals", RequirePermission(rbac.PermissionConsensusRead), progressionHandler.ListApprovals)
		auth.GET("/projects/:id/consensus", RequirePermission(rbac.PermissionConsensusRead), progressionHandler.GetConsensus)
		auth.POST("/projects/:id/advance", RequirePermission(rbac.PermissionStageAdvance), progressionHandler.AdvanceStage)

		admin := auth.Group("/admin/outbox")
		admin.Use(RequirePermission(rbac.PermissionOutboxReplay))
		admin.GET("/failed", adminHandler.ListFailedEvents)
		admin.POST("/replay", adminHandler.ReplayOutboxEvent)
		admin.POST("/replay-failed", adminHandler.ReplayFailedEvents)
	}

	return r
}
