package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lockbox/internal/controllers"
	"lockbox/internal/repositories"
	"lockbox/internal/services"
	"lockbox/pkg/config"
	"lockbox/pkg/driver"
	"lockbox/pkg/middleware"
	"lockbox/pkg/service"
)

type Loggers struct {
	Main    *zap.Logger
	Auth    *zap.Logger
	Order   *zap.Logger
	Payment *zap.Logger
	Device  *zap.Logger
}

// Deps - собранные сервисы приложения. Возвращаются из InitRouter, чтобы
// планировщик фоновых зачисток работал с теми же экземплярами, что и HTTP.
type Deps struct {
	LockerService services.LockerServiceInterface
	DeviceService services.DeviceServiceInterface
}

func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	jwtSvc service.JWTService,
	lockerDriver driver.LockerDriver,
	loggers *Loggers,
	cfg *config.Config,
) *Deps {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)
	rateLimitMW := middleware.NewRateLimitMiddleware(redisClient, cfg.Auth.RateLimitMaxPerWin, cfg.Auth.RateLimitWindow, loggers.Main)
	txManager := repositories.NewTxManager(dbConn)

	// --- РЕПОЗИТОРИИ ---
	userRepo := repositories.NewUserRepository(dbConn, loggers.Auth)
	lockerRepo := repositories.NewLockerRepository(dbConn, loggers.Main)
	tariffRepo := repositories.NewTariffRepository(dbConn)
	orderRepo := repositories.NewOrderRepository(dbConn, loggers.Order)
	itemRepo := repositories.NewOrderItemRepository(dbConn, loggers.Order)
	paymentRepo := repositories.NewPaymentRepository(dbConn, loggers.Payment)
	auditRepo := repositories.NewAuditRepository(dbConn, loggers.Main)
	deviceCmdRepo := repositories.NewDeviceCommandRepository(dbConn, loggers.Device)
	settingsRepo := repositories.NewSettingsRepository(dbConn, loggers.Main)
	reportRepo := repositories.NewReportRepository(dbConn)

	// --- СЕРВИСЫ ---
	auditService := services.NewAuditService(auditRepo, loggers.Main)
	settingsService := services.NewSettingsService(settingsRepo, redisClient, loggers.Main)
	tariffService := services.NewTariffService(tariffRepo, loggers.Main)
	rentalService := services.NewRentalService(orderRepo, itemRepo, lockerRepo, tariffRepo, paymentRepo, txManager, settingsService, auditService, loggers.Order)
	lockerService := services.NewLockerService(lockerRepo, itemRepo, orderRepo, deviceCmdRepo, txManager, auditService, rentalService, lockerDriver, cfg, loggers.Main)
	cartService := services.NewCartService(orderRepo, itemRepo, lockerRepo, tariffRepo, txManager, cfg, loggers.Order)
	orderService := services.NewOrderService(orderRepo, itemRepo, lockerRepo, tariffRepo, paymentRepo, rentalService, txManager, auditService, cfg, loggers.Order)
	paymentProvider := services.NewYooKassaClient(cfg, loggers.Payment)
	paymentService := services.NewPaymentService(paymentRepo, orderRepo, orderService, rentalService, orderService, paymentProvider, txManager, auditService, cfg, loggers.Payment)
	deviceService := services.NewDeviceService(deviceCmdRepo, auditService, cfg, loggers.Device)
	authService := services.NewAuthService(userRepo, jwtSvc, cfg, loggers.Auth)
	reportService := services.NewReportService(reportRepo, loggers.Main)

	// --- КОНТРОЛЛЕРЫ ---
	authCtrl := controllers.NewAuthController(authService, cfg, loggers.Auth)
	lockerCtrl := controllers.NewLockerController(lockerService, loggers.Main)
	cartCtrl := controllers.NewCartController(cartService, lockerService, loggers.Order)
	orderCtrl := controllers.NewOrderController(orderService, paymentService, loggers.Order)
	rentalCtrl := controllers.NewRentalController(rentalService, lockerService, paymentService, loggers.Order)
	paymentCtrl := controllers.NewPaymentController(paymentService, loggers.Payment)
	deviceCtrl := controllers.NewDeviceController(deviceService, loggers.Device)
	auditCtrl := controllers.NewAuditController(auditService, reportService, loggers.Main)
	tariffCtrl := controllers.NewTariffController(tariffService, settingsService, loggers.Main)

	// --- РОУТЕРЫ ---
	secureGroup := api.Group("", authMW.Auth)

	runAuthRouter(api, secureGroup, authCtrl, rateLimitMW)
	runLockerRouter(api, secureGroup, lockerCtrl, tariffCtrl, authMW)
	runCartRouter(secureGroup, cartCtrl)
	runOrderRouter(api, secureGroup, orderCtrl, paymentCtrl, rateLimitMW)
	runRentalRouter(secureGroup, rentalCtrl)
	runDeviceRouter(api, deviceCtrl)
	runAuditRouter(secureGroup, auditCtrl, authMW)
	runAdminRouter(secureGroup, lockerCtrl, tariffCtrl, auditCtrl, authMW)

	loggers.Main.Info("InitRouter: Создание маршрутов завершено")

	return &Deps{
		LockerService: lockerService,
		DeviceService: deviceService,
	}
}
