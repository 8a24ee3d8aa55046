package routes

import (
	"splitsub/internal/adapters/http/handlers"
	"splitsub/internal/adapters/http/middleware"
	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/clock"
	"splitsub/internal/config"
	"splitsub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Services bundles the wired service graph so main can hand the billing
// sweep its lifecycle without rebuilding the graph.
type Services struct {
	Pools       *services.PoolService
	Memberships *services.MembershipService
	Rules       *services.RuleService
	Billing     *services.BillingService
	Pricing     *services.PricingService
	Sweep       *services.BillingSweepService
}

// Setup configures all routes for the application and returns the wired
// service graph
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *Services {
	// Initialize repositories
	poolRepo := repositories.NewPoolRepository(db)
	platformRepo := repositories.NewPlatformRepository(db)
	memberRepo := repositories.NewMembershipRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	billingRepo := repositories.NewBillingRepository(db)
	marketRepo := repositories.NewMarketRepository(db)

	// Initialize services
	clk := clock.NewSystem()
	notifyService := services.NewNotificationService(cfg.Webhook.NotifyURL)

	poolService := services.NewPoolService(poolRepo, platformRepo, memberRepo, clk)
	membershipService := services.NewMembershipService(memberRepo, poolRepo, ruleRepo, poolService, notifyService, clk)
	ruleService := services.NewRuleService(ruleRepo, poolRepo)
	billingService := services.NewBillingService(billingRepo, memberRepo, poolRepo, membershipService, notifyService, clk)
	membershipService.AttachScheduler(billingService)
	pricingService := services.NewPricingService(marketRepo)
	sweepService := services.NewBillingSweepService(billingService, billingRepo, clk, cfg.Billing.GraceDays)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	poolHandler := handlers.NewPoolHandler(poolService, billingService)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	billingHandler := handlers.NewBillingHandler(billingService)
	pricingHandler := handlers.NewPricingHandler(pricingService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, healthHandler, poolHandler, membershipHandler,
		ruleHandler, billingHandler, pricingHandler, cfg)

	return &Services{
		Pools:       poolService,
		Memberships: membershipService,
		Rules:       ruleService,
		Billing:     billingService,
		Pricing:     pricingService,
		Sweep:       sweepService,
	}
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	poolHandler *handlers.PoolHandler,
	membershipHandler *handlers.MembershipHandler,
	ruleHandler *handlers.RuleHandler,
	billingHandler *handlers.BillingHandler,
	pricingHandler *handlers.PricingHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Platform master data (public)
	router.Get("/platforms", poolHandler.ListPlatforms)

	// Pricing intelligence (public, read-only)
	router.Get("/pricing/recommend", pricingHandler.Recommend)

	// Payment gateway webhook (keyed, not token-authenticated)
	webhookRoutes := router.Group("/webhooks")
	webhookRoutes.Use(middleware.WebhookRateLimiter())
	webhookRoutes.Use(middleware.WebhookKeyMiddleware(cfg))
	webhookRoutes.Post("/payments", billingHandler.PaymentWebhook)

	// Pool routes (authenticated)
	poolRoutes := router.Group("/pools")
	poolRoutes.Use(middleware.AuthMiddleware(cfg))
	setupPoolRoutes(poolRoutes, poolHandler, membershipHandler, ruleHandler, billingHandler)

	// Membership routes (authenticated)
	membershipRoutes := router.Group("/memberships")
	membershipRoutes.Use(middleware.AuthMiddleware(cfg))
	setupMembershipRoutes(membershipRoutes, membershipHandler)

	// Cycle routes (authenticated)
	cycleRoutes := router.Group("/cycles")
	cycleRoutes.Use(middleware.AuthMiddleware(cfg))
	cycleRoutes.Post("/:id/close", billingHandler.CloseCycle)
	cycleRoutes.Get("/:id/collected", billingHandler.GetCollected)

	// Admin routes (moderation, market data)
	adminRoutes := router.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(cfg))
	adminRoutes.Use(middleware.AdminOnly())
	adminRoutes.Patch("/pools/:id/moderation", poolHandler.SetModeration)
	adminRoutes.Put("/market-snapshots", pricingHandler.RefreshSnapshot)
}

// setupPoolRoutes configures pool & nested resources
func setupPoolRoutes(
	router fiber.Router,
	poolHandler *handlers.PoolHandler,
	membershipHandler *handlers.MembershipHandler,
	ruleHandler *handlers.RuleHandler,
	billingHandler *handlers.BillingHandler,
) {
	router.Post("/", poolHandler.CreatePool)
	router.Get("/", poolHandler.ListPools)
	router.Get("/mine", poolHandler.MyPools)
	router.Get("/:id", poolHandler.GetPool)
	router.Post("/:id/close", poolHandler.ClosePool)

	// Membership lifecycle, nested under the pool
	router.Post("/:id/join", membershipHandler.Join)
	router.Get("/:id/memberships", membershipHandler.ListPoolMemberships)

	// Auto-approve rule set
	router.Get("/:id/rules", ruleHandler.GetRuleSet)
	router.Put("/:id/rules", ruleHandler.UpdateRuleSet)
	router.Post("/:id/rules/preview", ruleHandler.Preview)

	// Billing cycle & ledger
	router.Post("/:id/cycles", billingHandler.OpenCycle)
	router.Get("/:id/cycles/open", billingHandler.GetOpenCycle)
	router.Get("/:id/owed", billingHandler.GetOwed)
}

// setupMembershipRoutes configures membership action routes
func setupMembershipRoutes(router fiber.Router, handler *handlers.MembershipHandler) {
	router.Get("/:id", handler.GetMembership)
	router.Post("/:id/approve", handler.Approve)
	router.Post("/:id/reject", handler.Reject)
	router.Delete("/:id", handler.Remove)
}
