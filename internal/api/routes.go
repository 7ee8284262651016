package api

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth          service.AuthService
	Directory     service.DirectoryService
	Ledger        service.LedgerService
	Sessions      service.SessionService
	Logs          service.LogService
	Notifications service.NotificationService
	Comments      service.CommentService
	Stats         service.StatsService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc Services) {
	authHandler := NewAuthHandler(svc.Auth)
	memberHandler := NewMemberHandler(svc.Directory)
	membershipHandler := NewMembershipHandler(svc.Ledger)
	sessionHandler := NewSessionHandler(svc.Sessions)
	dietHandler := NewLogHandler(svc.Logs, domain.LogDiet)
	workoutHandler := NewLogHandler(svc.Logs, domain.LogWorkout)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	commentHandler := NewCommentHandler(svc.Comments)
	statsHandler := NewStatsHandler(svc.Stats)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", memberHandler.Me)

		// --- Member Directory ---
		protected.POST("/members", RoleMiddleware(domain.RoleAdmin, domain.RoleTrainer), memberHandler.EnrollMember)
		protected.GET("/members", RoleMiddleware(domain.RoleAdmin), memberHandler.ListMembers)
		members := protected.Group("/members/:memberId")
		{
			members.GET("", memberHandler.GetMember)
			members.PATCH("", memberHandler.UpdateProfile)
			members.PUT("/password", memberHandler.ChangePassword)
			members.DELETE("", memberHandler.RemoveMember)
			members.PUT("/trainer", RoleMiddleware(domain.RoleAdmin, domain.RoleTrainer), memberHandler.AssignTrainer)

			// --- Membership (session ledger) ---
			members.GET("/membership", membershipHandler.GetLedger)
			members.POST("/membership/register", membershipHandler.RegisterSessions)
			members.POST("/membership/decrement", membershipHandler.DecrementSession)
			members.GET("/membership/history", membershipHandler.RegistrationHistory)
			members.GET("/membership/history/latest", membershipHandler.LatestRegistration)

			// --- PT Sessions ---
			members.POST("/sessions", sessionHandler.CreateSession)
			members.GET("/sessions", sessionHandler.ListMemberSessions)

			// --- Logs ---
			members.POST("/diet-logs", dietHandler.CreateLog)
			members.GET("/diet-logs", dietHandler.ListLogs)
			members.POST("/workout-logs", workoutHandler.CreateLog)
			members.GET("/workout-logs", workoutHandler.ListLogs)
			members.GET("/stats", statsHandler.MemberLogStats)

			// --- Notifications ---
			members.GET("/notifications", notificationHandler.ListNotifications)
			members.GET("/notifications/unread-count", notificationHandler.CountUnread)
			members.POST("/notifications/read", notificationHandler.MarkAllRead)
		}

		protected.GET("/memberships/alerts", RoleMiddleware(domain.RoleAdmin, domain.RoleTrainer), membershipHandler.LowRemainAlerts)

		sessions := protected.Group("/sessions/:sessionId")
		{
			sessions.GET("", sessionHandler.GetSession)
			sessions.PATCH("", sessionHandler.UpdateSession)
			sessions.DELETE("", sessionHandler.DeleteSession)
		}

		for prefix, h := range map[string]*LogHandler{"/diet-logs": dietHandler, "/workout-logs": workoutHandler} {
			logs := protected.Group(prefix + "/:logId")
			logs.GET("", h.GetLog)
			logs.PUT("", h.UpdateLog)
			logs.DELETE("", h.DeleteLog)
			logs.POST("/media", h.RequestMediaUpload)
			logs.GET("/media", h.GetMediaURL)
		}
		dietComments := protected.Group("/diet-logs/:logId/comments")
		{
			dietComments.POST("", commentHandler.CreateComment)
			dietComments.GET("", commentHandler.ListComments)
			dietComments.DELETE("/:commentId", commentHandler.DeleteComment)
		}

		// --- Admin Dashboard ---
		admin := protected.Group("/admin", RoleMiddleware(domain.RoleAdmin))
		{
			admin.GET("/stats", statsHandler.Summary)
			admin.GET("/stats/members", statsHandler.MemberActivity)
			admin.GET("/stats/trainers", statsHandler.TrainerLoads)
		}

		// --- Trainers ---
		protected.GET("/trainers", RoleMiddleware(domain.RoleAdmin), memberHandler.ListTrainers)
		trainers := protected.Group("/trainers/:trainerId")
		{
			trainers.GET("/members", memberHandler.ListTrainees)
			trainers.GET("/sessions", sessionHandler.ListTrainerSessions)
			trainers.DELETE("", RoleMiddleware(domain.RoleAdmin), memberHandler.HardRemoveTrainer)
		}
	}
}
