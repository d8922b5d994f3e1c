package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/auth"
	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/resource-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	btHttp "github.com/nekogravitycat/resource-booking-backend/internal/bookingtype/http"
	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	calHttp "github.com/nekogravitycat/resource-booking-backend/internal/calendar/http"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
	resHttp "github.com/nekogravitycat/resource-booking-backend/internal/resource/http"
)

// Config carries everything the router needs to register routes.
type Config struct {
	IsProduction    bool
	ProdOrigins     string
	DefaultTimezone *time.Location
	Logger          *zap.Logger

	CalendarService calendar.Service
	ResService      resource.Service
	BTService       bookingtype.Service
	BookingService  booking.Service
	JWTManager      *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: Logs one structured line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// staffMiddleware: Further checks if the authenticated user carries the staff role.
	staffMiddleware := RequireStaff()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	calHandler := calHttp.NewHandler(cfg.CalendarService)
	resHandler := resHttp.NewHandler(cfg.ResService)
	btHandler := btHttp.NewHandler(cfg.BTService, cfg.DefaultTimezone)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		calHttp.RegisterRoutes(v1, calHandler, authMiddleware, staffMiddleware)
		resHttp.RegisterRoutes(v1, resHandler, authMiddleware, staffMiddleware)
		btHttp.RegisterRoutes(v1, btHandler, authMiddleware, staffMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
	}

	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

const requestIDHeader = "X-Request-ID"

// RequestLogger logs method, path, status and latency of every request.
// Requests without an X-Request-ID header get a fresh one, echoed back.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if uid := auth.GetUserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
