package router

import (
	"time"

	"github.com/campusconnect/campusconnect/internal/config"
	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ZLogMiddleware(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireAuth := middleware.AuthMiddleware(h.Tokens(), h.Store())

	api := r.Group("/api")
	api.GET("/health", h.HealthCheck)

	v1 := api.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/token", h.Token)
			auth.POST("/logout", h.Logout)
			auth.GET("/me", requireAuth, h.Me)
		}

		users := v1.Group("/users", requireAuth)
		{
			users.GET("/me", h.Me)
			users.PATCH("/me", h.UpdateMe)
			users.PUT("/me/password", h.ChangePassword)
			users.DELETE("/me", h.DeactivateMe)
			users.GET("/:user_id", h.GetUser)
		}

		projects := v1.Group("/projects", requireAuth)
		{
			projects.POST("", h.CreateProject)
			projects.GET("", h.ListProjects)
			projects.GET("/:project_id", h.GetProject)
			projects.PATCH("/:project_id", h.UpdateProject)
			projects.DELETE("/:project_id", h.DeleteProject)

			projects.GET("/:project_id/members", h.ListMembers)
			projects.POST("/:project_id/members", h.AddMember)
			projects.PATCH("/:project_id/members/:user_id", h.UpdateMember)
			projects.DELETE("/:project_id/members/:user_id", h.RemoveMember)

			projects.GET("/:project_id/tasks", h.ListProjectTasks)
			projects.POST("/:project_id/tasks", h.CreateTask)

			projects.GET("/:project_id/files", h.ListProjectFiles)
			projects.POST("/:project_id/files", h.UploadFile)
		}

		tasks := v1.Group("/tasks", requireAuth)
		{
			tasks.GET("", h.ListMyTasks)
			tasks.GET("/:task_id", h.GetTask)
			tasks.PATCH("/:task_id", h.UpdateTask)
			tasks.DELETE("/:task_id", h.DeleteTask)
		}

		files := v1.Group("/files", requireAuth)
		{
			files.GET("/:file_id", h.GetFile)
			files.GET("/:file_id/download", h.DownloadFile)
			files.PATCH("/:file_id", h.UpdateFile)
			files.DELETE("/:file_id", h.DeleteFile)
		}

		search := v1.Group("/search", requireAuth)
		{
			search.GET("/global", h.SearchGlobal)
			search.GET("/projects", h.SearchProjects)
			search.GET("/tasks", h.SearchTasks)
			search.GET("/users", h.SearchUsers)
		}

		v1.GET("/ws/:project_id", requireAuth, h.WebSocket)
	}

	return r
}
