package router

import (
	"net/http"

	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/interfaces/http/handler"
	"github.com/delivery/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the API mounts
type Handlers struct {
	Auth        *handler.AuthHandler
	Restaurants *handler.RestaurantHandler
	Products    *handler.ProductHandler
	Orders      *handler.OrderHandler
	Drivers     *handler.DriverHandler
	Customers   *handler.CustomerHandler
	Settings    *handler.SettingsHandler
	Geocode     *handler.GeocodeHandler
	Telegram    *handler.TelegramHandler
	Maintenance *handler.MaintenanceHandler
	System      *handler.SystemHandler
	Pages       *handler.DispatchPages
}

// MountConfig controls how the route table is mounted
type MountConfig struct {
	APIVersion string
	// Auth builds the authentication middleware once the public routes are
	// known. Nil leaves the API unauthenticated.
	Auth func(public []middleware.PublicRoute) gin.HandlerFunc
	// OTPLimiter throttles code requests, nil disables it
	OTPLimiter gin.HandlerFunc
	// UploadDir is served under /uploads when set
	UploadDir string
}

// Mount registers the API, the driver link pages, health and uploads on engine
func Mount(engine *gin.Engine, h Handlers, cfg MountConfig) *Router {
	version := cfg.APIVersion
	if version == "" {
		version = "v1"
	}
	r := NewRouter(engine, WithAPIVersion(version))
	for _, g := range APIGroups(h, cfg.OTPLimiter) {
		r.Register(g)
	}

	if cfg.Auth != nil {
		r.Use(cfg.Auth(r.PublicRoutes()))
	}
	r.Setup()

	engine.GET("/health", h.System.Health)
	engine.GET("/accept/:orderId", h.Pages.Accept)
	engine.GET("/refuse/:orderId", h.Pages.Refuse)
	if cfg.UploadDir != "" {
		engine.StaticFS("/uploads", http.Dir(cfg.UploadDir))
	}
	return r
}

// APIGroups builds the /api/<version> route table
func APIGroups(h Handlers, otpLimiter gin.HandlerFunc) []*DomainGroup {
	admin := middleware.RequireAdmin()
	driver := middleware.RequireRole(auth.RoleDriver)
	customer := middleware.RequireRole(auth.RoleCustomer)
	adminOrDriver := middleware.RequireRole(auth.RoleAdmin, auth.RoleDriver)

	otpRequest := []gin.HandlerFunc{h.Auth.RequestOTP}
	if otpLimiter != nil {
		otpRequest = []gin.HandlerFunc{otpLimiter, h.Auth.RequestOTP}
	}

	authGroup := NewDomainGroup("auth", "/auth").
		POST("/admin/login", h.Auth.AdminLogin).Public().
		POST("/refresh", h.Auth.Refresh).Public().
		POST("/logout", h.Auth.Logout).
		POST("/otp/request", otpRequest...).Public().
		POST("/otp/verify", h.Auth.VerifyOTP).Public()

	restaurants := NewDomainGroup("restaurants", "/restaurants").
		GET("", h.Restaurants.List).Public().
		GET("/:id", h.Restaurants.Get).Public().
		GET("/:id/products", h.Products.ListByRestaurant).Public().
		POST("", admin, h.Restaurants.Create).
		PUT("/:id", admin, h.Restaurants.Update).
		DELETE("/:id", admin, h.Restaurants.Delete).
		POST("/:id/toggle-open", admin, h.Restaurants.ToggleOpen).
		PATCH("/:id/coordinates", admin, h.Restaurants.SetCoordinates)

	products := NewDomainGroup("products", "/products").
		GET("", h.Products.List).Public().
		GET("/:id", h.Products.Get).Public().
		POST("", admin, h.Products.Create).
		PUT("/:id", admin, h.Products.Update).
		DELETE("/:id", admin, h.Products.Delete).
		PATCH("/:id/availability", admin, h.Products.SetAvailability).
		POST("/:id/image", admin, h.Products.UploadImage)

	orders := NewDomainGroup("orders", "/orders").
		POST("", h.Orders.Checkout).Public().
		GET("/:id/track", h.Orders.Track).Public().
		GET("/:id/ws", h.Orders.Stream).Public().
		GET("", admin, h.Orders.List).
		GET("/:id", adminOrDriver, h.Orders.Get).
		PATCH("/:id/status", adminOrDriver, h.Orders.UpdateStatus).
		POST("/:id/reject", admin, h.Orders.Reject).
		DELETE("/:id", admin, h.Orders.Delete).
		POST("/:id/dispatch", admin, h.Orders.Dispatch).
		POST("/:id/payment", h.Orders.InitiatePayment).Public()

	payments := NewDomainGroup("payments", "/payments").
		GET("/flouci/verify", h.Orders.VerifyPayment).Public()

	drivers := NewDomainGroup("drivers", "/drivers").
		POST("/auth/login", h.Auth.DriverLogin).Public().
		POST("/auth/exchange", h.Auth.DriverExchange).Public().
		GET("/me/orders", driver, h.Orders.DriverOrders).
		PATCH("/me/status", driver, h.Drivers.SetOwnStatus).
		GET("", admin, h.Drivers.List).
		POST("", admin, h.Drivers.Create).
		GET("/:id", admin, h.Drivers.Get).
		PUT("/:id", admin, h.Drivers.Update).
		DELETE("/:id", admin, h.Drivers.Delete).
		PATCH("/:id/status", admin, h.Drivers.SetStatus)

	customers := NewDomainGroup("customers", "/customers/me").
		Use(customer).
		GET("", h.Customers.Profile).
		PUT("", h.Customers.UpdateProfile).
		GET("/addresses", h.Customers.ListAddresses).
		POST("/addresses", h.Customers.AddAddress).
		PUT("/addresses/:id", h.Customers.UpdateAddress).
		DELETE("/addresses/:id", h.Customers.RemoveAddress)

	settings := NewDomainGroup("settings", "/settings").
		GET("", h.Settings.List).Public().
		GET("/:key", h.Settings.Get).Public().
		PUT("/:key", admin, h.Settings.Set)

	geocode := NewDomainGroup("geocode", "/geocode").
		GET("", h.Geocode.Search).Public().
		GET("/reverse", h.Geocode.Reverse).Public()

	telegram := NewDomainGroup("telegram", "/telegram").
		POST("/webhook", h.Telegram.Webhook).Public()

	maintenance := NewDomainGroup("admin", "/admin/maintenance").
		Use(admin).
		GET("", h.Maintenance.Jobs).
		POST("/:job", h.Maintenance.Run).
		GET("/jobs/:id", h.Maintenance.Status)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo).Public()

	return []*DomainGroup{
		authGroup, restaurants, products, orders, payments, drivers,
		customers, settings, geocode, telegram, maintenance, system,
	}
}
