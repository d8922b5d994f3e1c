package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/api"
	"github.com/nekogravitycat/resource-booking-backend/internal/auth"
	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/busy"
	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/combination"
	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	DBPool            *pgxpool.Pool
	JWTSecret         string
	JWTTTL            time.Duration
	DefaultTimezone   *time.Location
	SlotSearchHorizon time.Duration
	Logger            *zap.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	BookingService booking.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	txManager := db.NewTxManager(cfg.DBPool)

	// Configuration Modules
	calRepo := calendar.NewPgxRepository(cfg.DBPool)
	resRepo := resource.NewPgxRepository(cfg.DBPool)
	resService := resource.NewService(resRepo)
	comboRepo := combination.NewPgxRepository(cfg.DBPool)

	// Scheduling Core
	tracker := busy.NewTracker(busy.NewPgxSource(cfg.DBPool), log)
	engine := availability.NewEngine(calRepo, tracker, availability.WithClock(time.Now))
	selector := scheduling.NewSelector(engine)
	validator := scheduling.NewValidator(engine)

	// BookingType Module
	btRepo := bookingtype.NewPgxRepository(cfg.DBPool)
	btService := bookingtype.NewService(btRepo, comboRepo, resRepo, engine, cfg.SlotSearchHorizon)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	bookingService := booking.NewService(bookingRepo, btService, selector, validator, txManager, log)

	// Calendar Module (re-validates bookings through the booking module)
	calService := calendar.NewService(calRepo, txManager, bookingService, log)

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		DefaultTimezone: cfg.DefaultTimezone,
		Logger:          log,
		CalendarService: calService,
		ResService:      resService,
		BTService:       btService,
		BookingService:  bookingService,
		JWTManager:      jwtManager,
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		BookingService: bookingService,
	}
}
