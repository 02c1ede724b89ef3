package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentpay-server-go/metrics"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	StaticDir string // served for GET paths that match no route
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewRouter builds the gin engine. API paths match exactly; anything else is
// a static file for GET/HEAD, "Endpoint not found" for POST.
func NewRouter(h *APIHandler, opts RouterOptions) *gin.Engine {
	if opts.StaticDir == "" {
		opts.StaticDir = "."
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	router.Use(
		RequestID(),
		RequestLogger(opts.Logger),
		Instrument(opts.Metrics),
		CORS(),
		Recovery(opts.Logger),
	)

	api := router.Group("/api")
	{
		// Student routes
		api.GET("/get-student", h.GetStudent)
		api.POST("/save-student", h.SaveStudent)
		api.POST("/import-students", h.ImportStudents)

		// Account routes
		api.POST("/save-user", h.SaveUser)
		api.POST("/login", h.Login)

		// Notification routes
		api.GET("/get-notifications", h.GetNotifications)
		api.GET("/export-notifications", h.ExportNotifications)
		api.POST("/pay-notification", h.PayNotification)
		api.POST("/respond-notification", h.RespondNotification)
		api.POST("/confirm-payment", h.ConfirmPayment)
	}

	router.GET("/health", PingHandler)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	router.NoRoute(fallback(opts.StaticDir))

	return router
}

func fallback(staticDir string) gin.HandlerFunc {
	files := http.FileServer(gin.Dir(staticDir, true))
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			files.ServeHTTP(c.Writer, c.Request)
		case http.MethodPost:
			respondError(c, http.StatusNotFound, "Endpoint not found")
		default:
			respondError(c, http.StatusNotImplemented, "Unsupported method")
		}
	}
}
