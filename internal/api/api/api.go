package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"cache2k25/cmd/middleware"
	"cache2k25/internal/service"
)

var DefaultOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

type Routers struct {
	Service        service.Service
	Log            *zerolog.Logger
	AllowedOrigins []string
	Mode           string
}

func NewRouters(r *Routers) *ginext.Engine {
	origins := r.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiGroup := app.Group("/api")

	apiGroup.GET("/health", r.Service.Health)
	apiGroup.GET("/events", r.Service.Events)
	apiGroup.POST("/create-payment", r.Service.CreatePayment)
	apiGroup.POST("/payment-callback", r.Service.PaymentCallback)
	apiGroup.GET("/payment-status/:merchantTransactionId", r.Service.PaymentStatus)
	apiGroup.POST("/register", r.Service.Register)
	apiGroup.GET("/registrations", r.Service.ListRegistrations)
	apiGroup.GET("/registrations/:eventId", r.Service.ListByEvent)
	apiGroup.GET("/export-excel", r.Service.ExportExcel)
	apiGroup.GET("/download-excel", r.Service.DownloadExcel)

	return app
}
