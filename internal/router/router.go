package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/middleware"
	"busoptimizer/backend/internal/pkg/config"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/repository/postgres/fleet"
	"busoptimizer/backend/internal/repository/postgres/ingest"
	"busoptimizer/backend/internal/repository/postgres/report"
	"busoptimizer/backend/internal/repository/postgres/user"
	"busoptimizer/backend/internal/service/archive"
	"busoptimizer/backend/internal/service/attendance"
	ingest_service "busoptimizer/backend/internal/service/ingest"
	"busoptimizer/backend/internal/service/live"
	"busoptimizer/backend/internal/service/occupancy"
	"busoptimizer/backend/internal/service/reconcile"

	auth_controller "busoptimizer/backend/internal/controller/http/v1/auth"
	fleet_controller "busoptimizer/backend/internal/controller/http/v1/fleet"
	live_controller "busoptimizer/backend/internal/controller/http/v1/live"
	report_controller "busoptimizer/backend/internal/controller/http/v1/report"
	scan_controller "busoptimizer/backend/internal/controller/http/v1/scan"
	upload_controller "busoptimizer/backend/internal/controller/http/v1/upload"
	user_controller "busoptimizer/backend/internal/controller/http/v1/user"
)

type Router struct {
	*web.App
	postgresDB *postgresql.Database
	redisDB    *redis.Client
	auth       *auth.Auth
	cfg        *config.Config
}

func NewRouter(
	app *web.App,
	postgresDB *postgresql.Database,
	redisDB *redis.Client,
	auth *auth.Auth,
	cfg *config.Config,
) *Router {
	return &Router{
		app,
		postgresDB,
		redisDB,
		auth,
		cfg,
	}
}

// Services holds the domain services shared by the HTTP routes and the CLI.
type Services struct {
	Ingest    *ingest_service.Service
	Occupancy *occupancy.CachedAggregator
	Hub       *live.Hub
	Location  *time.Location
}

// NewServices wires the ingestion pipeline and the occupancy aggregator on
// top of postgres. redisDB may be nil, then an in-process cache is used.
func NewServices(ctx context.Context, db *postgresql.Database, redisDB *redis.Client, cfg *config.Config, log logger.Logger) (*Services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	stores := []archive.Store{archive.NewDisk(cfg.Archive.Dir)}
	if cfg.Archive.S3Bucket != "" {
		s3, err := archive.NewS3(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		if err != nil {
			return nil, errors.Wrap(err, "archive s3")
		}
		stores = append(stores, s3)
	}

	var cache occupancy.Cache = occupancy.NewMemoryCache(cfg.Cache.TTL)
	if redisDB != nil {
		cache = occupancy.NewRedisCache(redisDB, "busopt:occupancy:", cfg.Cache.TTL)
	}

	hub := live.NewHub(log)
	ingestPostgres := ingest.NewRepository(db)
	reportPostgres := report.NewRepository(db)

	aggregator := occupancy.NewCachedAggregator(occupancy.NewAggregator(reportPostgres, log), cache, log)
	engine := reconcile.NewEngine(ingestPostgres.Masters(), log)
	processor := attendance.NewProcessor(ingestPostgres.Attendance(), loc, log, hub)

	return &Services{
		Ingest:    ingest_service.NewService(engine, processor, archive.New(stores...), aggregator, log),
		Occupancy: aggregator,
		Hub:       hub,
		Location:  loc,
	}, nil
}

func (r Router) Init(ctx context.Context) error {
	services, err := NewServices(ctx, r.postgresDB, r.redisDB, r.cfg, r.Log())
	if err != nil {
		return err
	}

	r.HandleMethodNotAllowed = true
	r.Use(middleware.CORSMiddleware(r.cfg.Server.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// - postgresql
	userPostgres := user.NewRepository(r.postgresDB)
	fleetPostgres := fleet.NewRepository(r.postgresDB)
	reportPostgres := report.NewRepository(r.postgresDB)

	// controller
	authController := auth_controller.NewController(userPostgres, r.auth)
	userController := user_controller.NewController(userPostgres)
	uploadController := upload_controller.NewController(services.Ingest, r.cfg.Server.MaxUploadBytes)
	scanController := scan_controller.NewController(services.Ingest)
	fleetController := fleet_controller.NewController(fleetPostgres, services.Occupancy)
	reportController := report_controller.NewController(reportPostgres, services.Occupancy, services.Location)
	liveController := live_controller.NewController(services.Hub, r.Log())

	admin := middleware.Authenticate(r.auth, auth.RoleAdmin)
	viewer := middleware.Authenticate(r.auth, auth.RoleAdmin, auth.RoleDashboard)

	// #auth
	r.Post("/api/v1/sign-in", authController.SignIn)

	// #user
	r.Get("/api/v1/user/list", userController.GetUserList, admin)
	r.Post("/api/v1/user/create", userController.CreateUser, admin)

	// #ingest
	r.Post("/api/v1/bus/upload-scans", scanController.UploadScans, middleware.APIKey(config.ParseAPIKeys(r.cfg.APIKeys)))
	r.Post("/api/v1/bus/master-list/upload", uploadController.MasterList, admin)
	r.Get("/api/v1/bus/master-list/template", uploadController.MasterTemplate, admin)
	r.Post("/api/v1/bus/attendance/upload", uploadController.Attendance, admin)
	r.Delete("/api/v1/bus/attendance/delete-by-date", fleetController.DeleteAttendanceByDate, admin)

	// #fleet
	r.Get("/api/v1/bus/buses", fleetController.ListBuses, admin)
	r.Post("/api/v1/bus/buses", fleetController.UpsertBus, admin)
	r.Get("/api/v1/bus/vans", fleetController.ListVans, admin)
	r.Post("/api/v1/bus/vans", fleetController.UpsertVan, admin)
	r.Get("/api/v1/bus/employees", fleetController.ListEmployees, admin)
	r.Post("/api/v1/bus/employees", fleetController.UpsertEmployee, admin)
	r.Get("/api/v1/bus/employees/:batch_id/badge", fleetController.Badge, admin)
	r.Get("/api/v1/bus/badges", fleetController.Badges, admin)

	// #report
	r.Get("/api/v1/report/headcount", reportController.Headcount, viewer)
	r.Get("/api/v1/report/headcount/export", reportController.HeadcountExport, viewer)
	r.Get("/api/v1/report/attendance", reportController.Attendance, viewer)
	r.Get("/api/v1/report/attendance/export", reportController.AttendanceExport, viewer)
	r.Get("/api/v1/report/summary", reportController.Summary, viewer)
	r.Get("/api/v1/report/occupancy", reportController.Occupancy, viewer)
	r.Get("/api/v1/report/occupancy/filters", reportController.OccupancyFilters, viewer)
	r.Get("/api/v1/report/occupancy/export", reportController.OccupancyExport, viewer)
	r.Get("/api/v1/report/bus-detail", reportController.BusDetail, viewer)

	// #live
	r.Get("/api/v1/live/scans", liveController.Scans, middleware.WsAuthenticate(r.auth, auth.RoleAdmin, auth.RoleDashboard))

	return nil
}
