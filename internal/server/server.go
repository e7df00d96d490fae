package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pantryloop/backend/config"
	"github.com/pantryloop/backend/internal/api"
	"github.com/pantryloop/backend/internal/database"
	"github.com/pantryloop/backend/internal/middleware"
	"github.com/pantryloop/backend/internal/service"
)

// Server wires the services, handlers and background sweeps together
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	http   *http.Server
	db     *gorm.DB
	redis  *redis.Client

	batches *service.BatchService
	idem    *service.IdempotencyService
	clock   service.Clock

	stopSweeps chan struct{}
}

// New creates a server instance. The redis client may be nil, in which
// case mutation rate limiting is disabled (tests, local development).
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	clock := service.NewClock()

	batches := service.NewBatchService(db, cfg, clock, nil)
	factors := service.NewDBFactorProvider(db)
	footprint := service.NewFootprintService(db, factors, clock)
	recipes := service.NewDBRecipeProvider(db)
	sessions := service.NewCookingSessionService(db, cfg, clock, batches, footprint, recipes)
	rescue := service.NewRescueService(db, cfg, clock, batches, footprint)
	idem := service.NewIdempotencyService(db, cfg.IdempotencyTTL, clock)
	auth := service.NewAuthService(db, cfg.JWTSecret)

	router := gin.Default()
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.HealthCheck(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": err.Error()})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	api.NewAuthHandler(auth).RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(auth))
	if redisClient != nil {
		protected.Use(middleware.NewMutationRateLimiter(redisClient).Middleware())
	}
	api.NewBatchHandler(batches, rescue, idem).RegisterRoutes(protected)
	api.NewSessionHandler(sessions, idem).RegisterRoutes(protected)
	api.NewFootprintHandler(footprint, idem).RegisterRoutes(protected)

	return &Server{
		cfg:    cfg,
		router: router,
		http: &http.Server{
			Addr:    cfg.ServerHost + ":" + cfg.ServerPort,
			Handler: router,
		},
		db:         db,
		redis:      redisClient,
		batches:    batches,
		idem:       idem,
		clock:      clock,
		stopSweeps: make(chan struct{}),
	}
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the background sweeps and serves HTTP until Shutdown
func (s *Server) Start() error {
	go s.runSweeps()
	log.Printf("Listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the sweeps and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopSweeps)
	return s.http.Shutdown(ctx)
}

// runSweeps drives the scheduled jobs: the expiry sweep reclassifies
// batches against their dates, the idempotency sweep purges records past
// TTL. Both jobs are idempotent, so the schedule only affects latency.
func (s *Server) runSweeps() {
	expiry := time.NewTicker(time.Hour)
	idem := time.NewTicker(time.Hour)
	defer expiry.Stop()
	defer idem.Stop()

	for {
		select {
		case <-s.stopSweeps:
			return
		case <-expiry.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := s.batches.RunExpirySweep(ctx, s.clock.Now())
			cancel()
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("expiry sweep: %d transitions", n)
			}
		case <-idem.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := s.idem.Sweep(ctx, s.clock.Now())
			cancel()
			if err != nil {
				log.Printf("idempotency sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("idempotency sweep: purged %d records", n)
			}
		}
	}
}
