// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/handlers"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/services"
	"github.com/zenpa1/budget-tracker/internal/session"
)

// Deps is everything the router needs. Session may be nil, in which case
// the health endpoint reports only liveness.
type Deps struct {
	Tokens      *middleware.JWT
	Session     *session.Session
	CORSOrigins []string

	Users         services.UserServicer
	Budgets       services.BudgetServicer
	Expenses      services.ExpenseServicer
	Anomalies     services.AnomalyServicer
	Feedback      services.FeedbackServicer
	Notifications services.NotificationServicer
	Dashboard     services.DashboardServicer
}

// HealthResponse reports liveness and the state of the change feed.
type HealthResponse struct {
	Status string          `json:"status"`
	Sync   *session.Status `json:"sync,omitempty"`
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(d.Users, d.Dashboard, d.Tokens)
	budgetHandler := handlers.NewBudgetHandler(d.Budgets)
	expenseHandler := handlers.NewExpenseHandler(d.Expenses)
	anomalyHandler := handlers.NewAnomalyHandler(d.Anomalies)
	feedbackHandler := handlers.NewFeedbackHandler(d.Feedback)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	dashboardHandler := handlers.NewDashboardHandler(d.Dashboard)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(corsConfig(d.CORSOrigins)))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", health(d.Session))

	v1 := router.Group("/api/v1")

	// Public routes. Feedback submission and lookup never read credentials.
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/capabilities", d.Tokens.OptionalAuthenticate(), authHandler.GetCapabilities)
	v1.POST("/feedback", feedbackHandler.SubmitFeedback)
	v1.GET("/feedback/status/:code", feedbackHandler.GetFeedbackStatus)

	protected := v1.Group("")
	protected.Use(d.Tokens.Authenticate())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/dashboard", dashboardHandler.GetDashboard)
	protected.GET("/reports/anomalies", middleware.RequireCapability(auth.ExportReports), dashboardHandler.ExportAnomalyReport)

	budgets := protected.Group("/budgets")
	budgets.POST("", middleware.RequireCapability(auth.ManageBudgets), budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PATCH("/:id", middleware.RequireCapability(auth.ManageBudgets), budgetHandler.UpdateBudget)
	budgets.GET("/:id/expenses", budgetHandler.GetBudgetExpenses)

	protected.POST("/expenses", middleware.RequireCapability(auth.LogExpense), expenseHandler.CreateExpense)

	anomalies := protected.Group("/anomalies")
	anomalies.GET("", anomalyHandler.GetAnomalies)
	anomalies.PATCH("/:id", middleware.RequireCapability(auth.ReviewAnomalies), anomalyHandler.UpdateAnomalyStatus)

	protected.GET("/feedback", middleware.RequireCapability(auth.ViewFeedbackInbox), feedbackHandler.GetFeedbackReports)
	protected.PATCH("/feedback/:id", middleware.RequireCapability(auth.ManageFeedback), feedbackHandler.UpdateFeedback)

	notifications := protected.Group("/notifications")
	notifications.Use(middleware.RequireCapability(auth.ReadNotifications))
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.POST("/:id/read", notificationHandler.MarkRead)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// health answers 200 while the process is up. A degraded feed is reported
// but does not fail the check, since reads are still served from the cache.
func health(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{Status: "ok"}
		if s != nil {
			st := s.Health()
			if st.Degraded {
				resp.Status = "degraded"
			}
			resp.Sync = &st
		}
		c.JSON(http.StatusOK, resp)
	}
}
