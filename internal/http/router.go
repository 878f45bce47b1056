package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas. Todo lo
// que toca datos del estudio va detras del middleware JWT; el login, el
// flujo OTP, el health check y el alta de admins quedan fuera del grupo
// (el handler de alta exige token salvo para la primera cuenta).
func NewRouter(
	logger *zap.Logger,
	jwtServ *service.JWTService,
	adminH *AdminHandler,
	dashH *DashboardHandler,
	analysisH *AnalysisHandler,
	exportH *ExportHandler,
	backupH *BackupHandler,
	filesH *FilesHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/login", adminH.Login)
	auth.POST("/otp/request", adminH.RequestOTP)
	auth.POST("/otp/verify", adminH.VerifyOTP)
	auth.POST("/refresh", adminH.RefreshToken)
	auth.POST("/logout", adminH.Logout)

	// Fuera del grupo protegido: un deploy recien levantado no tiene
	// admins y necesita poder crear el primero sin token.
	r.POST("/admins", adminH.CreateAdmin)

	protected := r.Group("/")
	protected.Use(JWTAuthMiddleware(jwtServ))

	dashboard := protected.Group("/dashboard")
	dashboard.GET("/summary", dashH.Summary)
	dashboard.GET("/by-view", dashH.ByView)
	dashboard.GET("/distribution", dashH.Distribution)
	dashboard.GET("/trend", dashH.Trend)
	dashboard.GET("/load-report", dashH.LoadReport)

	protected.POST("/analysis/run", analysisH.Run)

	export := protected.Group("/export")
	export.GET("/csv", exportH.CSV)
	export.GET("/spss", exportH.SPSS)

	backups := protected.Group("/backups")
	backups.POST("", backupH.Create)
	backups.GET("", backupH.List)
	backups.POST("/:name/restore", backupH.Restore)

	files := protected.Group("/files")
	files.POST("", filesH.Upload)
	files.GET("", filesH.List)
	files.DELETE("/:name", filesH.Delete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
