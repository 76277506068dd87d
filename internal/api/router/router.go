package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"researchhub/backend/config"
	"researchhub/backend/internal/api/handler"
	"researchhub/backend/internal/api/middleware"
	"researchhub/backend/internal/model"
	"researchhub/backend/pkg/jwt"
	"researchhub/backend/pkg/metrics"
	"researchhub/backend/pkg/redis"
	"researchhub/backend/pkg/storage"
	"researchhub/backend/pkg/tracing"
)

// loginRateLimit 登录接口单独限流
const loginRateLimit = 10

// Deps 路由依赖，db/rdb/metrics/storage 均可为 nil
type Deps struct {
	Config  *config.Config
	Handler *handler.Handler
	JWT     *jwt.Manager
	DB      *gorm.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Storage storage.Provider
	Logger  *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	cfg, h := d.Config, d.Handler
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(tracing.GinMiddleware())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes, cfg.Server.MaxUploadBytes))

	// ── 运维 ──
	r.GET("/health", healthHandler(d.DB, d.Redis))
	if d.Metrics != nil {
		r.GET("/metrics", d.Metrics.Handler())
	}

	// 本地存储的文件通过静态路由访问
	if local, ok := d.Storage.(*storage.LocalProvider); ok {
		r.Static("/uploads", local.Root())
	}

	admin := middleware.RoleAuth(model.RoleAdmin)
	staff := middleware.RoleAuth(model.RoleAdmin, model.RoleAssistant)
	assistant := middleware.RoleAuth(model.RoleAssistant)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.Redis, "api", cfg.Server.RateLimit, cfg.Server.RateWindow))
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login", middleware.RateLimit(d.Redis, "login", loginRateLimit, time.Minute), h.Auth.Login)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Redis, d.Logger))
		{
			// 认证模块（需要认证）
			auth := authorized.Group("/auth")
			{
				auth.POST("/logout", h.Auth.Logout)
				auth.GET("/me", h.Auth.Me)
				auth.PUT("/password", h.Auth.ChangePassword)
				auth.PUT("/profile", h.Auth.UpdateProfile)
				auth.POST("/avatar", h.Auth.UploadAvatar)
			}

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("/supervisors", h.User.ListSupervisors)
				users.GET("/export", staff, h.Export.ExportUsers)
				users.POST("/import", admin, h.User.ImportUsers)
				users.GET("", staff, h.User.ListUsers)
				users.POST("", admin, h.User.CreateUser)
				users.GET("/:id", staff, h.User.GetUser)
				users.PUT("/:id", admin, h.User.UpdateUser)
				users.POST("/:id/reset-password", admin, h.User.ResetPassword)
			}

			// 学院模块
			departments := authorized.Group("/departments")
			{
				departments.GET("", h.Department.ListDepartments)
				departments.GET("/:id", h.Department.GetDepartment)
				departments.POST("", admin, h.Department.CreateDepartment)
				departments.PUT("/:id", admin, h.Department.UpdateDepartment)
				departments.DELETE("/:id", admin, h.Department.DeleteDepartment)
			}

			// 学年与批次
			years := authorized.Group("/academic-years")
			{
				years.GET("", h.AcademicYear.ListYears)
				years.GET("/:id", h.AcademicYear.GetYear)
				years.POST("", admin, h.AcademicYear.CreateYear)
				years.PUT("/:id", admin, h.AcademicYear.UpdateYear)
			}
			sessions := authorized.Group("/year-sessions")
			{
				sessions.GET("", h.AcademicYear.ListSessions)
				sessions.POST("", admin, h.AcademicYear.CreateSession)
				// 教学秘书仅限本学院批次（Service 层鉴权）
				sessions.PUT("/:id", staff, h.AcademicYear.UpdateSession)
				sessions.DELETE("/:id", admin, h.AcademicYear.DeleteSession)
			}

			// 选题申报，状态相关权限由 lifecycle 守卫表在 Service 层判定
			topics := authorized.Group("/topics")
			{
				topics.GET("", h.Topic.ListTopics)
				topics.GET("/mine", h.Topic.ListMine)
				topics.POST("", h.Topic.CreateTopic)
				topics.GET("/:id", h.Topic.GetTopic)
				topics.PUT("/:id", h.Topic.UpdateTopic)
				topics.PUT("/:id/status", assistant, h.Topic.UpdateStatus)
				topics.PUT("/:id/advisor", assistant, h.Topic.AssignAdvisor)
				topics.PUT("/:id/leader", assistant, h.Topic.AssignLeader)
				topics.POST("/:id/register", middleware.RoleAuth(model.RoleStudent), h.Topic.Register)
				topics.POST("/:id/members/approve", h.Topic.ApproveMembers)
				topics.POST("/:id/members/reject", h.Topic.RejectMembers)
				topics.GET("/:id/permissions", h.Topic.Permissions)
				topics.GET("/:id/documents", h.ApprovedTopic.ListTopicDocuments)
				topics.POST("/:id/documents", h.ApprovedTopic.UploadDocument)
			}

			// 立项课题与材料
			approved := authorized.Group("/approved-topics")
			{
				approved.GET("", h.ApprovedTopic.ListApprovedTopics)
				approved.PUT("/:id", assistant, h.ApprovedTopic.UpdateApprovedTopic)
				approved.GET("/:id/documents", h.ApprovedTopic.ListDocuments)
			}
			documents := authorized.Group("/documents")
			{
				documents.PUT("/:id/summary", h.ApprovedTopic.UpdateSummary)
				documents.DELETE("/:id", h.ApprovedTopic.DeleteDocument)
			}

			// 公告
			announcements := authorized.Group("/announcements")
			{
				announcements.GET("", h.Announcement.ListAnnouncements)
				announcements.POST("", staff, h.Announcement.CreateAnnouncement)
				announcements.PUT("/:id", staff, h.Announcement.UpdateAnnouncement)
				announcements.DELETE("/:id", staff, h.Announcement.DeleteAnnouncement)
			}

			// 站内消息
			messages := authorized.Group("/messages")
			{
				messages.POST("", h.Message.Send)
				messages.GET("/inbox", h.Message.Inbox)
				messages.GET("/sent", h.Message.Sent)
				messages.GET("/partners", h.Message.SearchPartners)
				messages.PUT("/:id/read", h.Message.MarkRead)
				messages.PUT("/:id", h.Message.Update)
				messages.DELETE("/:id", h.Message.Delete)
			}

			// 统计看板
			dashboard := authorized.Group("/dashboard")
			{
				dashboard.GET("/admin", admin, h.Dashboard.Admin)
				dashboard.GET("/assistant", assistant, h.Dashboard.Assistant)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/approved-topics", staff, h.Export.ExportApprovedTopics)
			}
		}
	}

	return r
}

// healthHandler 检查数据库与 Redis 连通性，Redis 不可用只标记降级
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "up", "redis": "disabled"}
		code := http.StatusOK

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				status["status"] = "unavailable"
				status["database"] = "down"
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			status["redis"] = "up"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "down"
				if code == http.StatusOK {
					status["status"] = "degraded"
				}
			}
		}

		c.JSON(code, status)
	}
}
