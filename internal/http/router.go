package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies that are nil leave their routes unregistered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	limited := cfg.ModelLimiter.Middleware()

	health := NewHealthController(cfg)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Books API endpoints
	if cfg.Books != nil {
		booksController := NewBooksController(cfg.Books, cfg.Reader)
		router.POST("/api/books", booksController.Upload)
		router.GET("/api/books", booksController.GetAllBooks)
		router.GET("/api/books/:id", booksController.GetBook)
		router.GET("/api/books/:id/cover", booksController.GetCover)
		router.DELETE("/api/books/:id", booksController.DeleteBook)
	}

	// Reader endpoints
	if cfg.Reader != nil {
		readerController := NewReaderController(cfg.Reader)
		router.POST("/api/reader/:id/open", readerController.Open)
		router.POST("/api/reader/ready", readerController.Ready)
		router.POST("/api/reader/selection", readerController.Select)
		router.GET("/api/reader/annotations", readerController.List)
		router.POST("/api/reader/annotations", readerController.Annotate)
		router.DELETE("/api/reader/annotations", readerController.Remove)
		router.POST("/api/reader/overlays/click", readerController.Click)
		router.PUT("/api/reader/location", readerController.UpdateLocation)
		router.POST("/api/reader/location/save", readerController.SaveLocation)
		router.POST("/api/reader/close", readerController.Close)
	}

	// Conversation endpoints
	if cfg.Chat != nil {
		chatController := NewChatController(cfg.Chat, cfg.DefaultModel)
		router.POST("/api/books/:id/chat", limited, chatController.Ask)
		router.GET("/api/books/:id/chat", chatController.History)
		router.DELETE("/api/books/:id/chat", chatController.Clear)
		router.POST("/api/chat/explain", limited, chatController.Explain)
	}

	// Diagram endpoints
	if cfg.Diagrams != nil {
		diagramsController := NewDiagramsController(cfg.Diagrams, cfg.DefaultModel)
		router.POST("/api/books/:id/diagrams", limited, diagramsController.Generate)
		router.GET("/api/books/:id/diagrams", diagramsController.Status)
	}

	// Provider settings endpoints
	if cfg.Settings != nil {
		settingsController := NewSettingsController(cfg.Settings)
		router.GET("/api/settings/providers", settingsController.GetProviders)
		router.PUT("/api/settings/providers/:provider", settingsController.UpdateProvider)
		router.DELETE("/api/settings/providers/:provider", settingsController.ClearProvider)
	}

	// Task management endpoints
	if cfg.Tasks != nil {
		tasksController := NewTasksController(cfg.Tasks)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
