package router

import (
	"net/http"

	_ "github.com/epeers/allocator/docs"
	"github.com/epeers/allocator/internal/handlers"
	"github.com/epeers/allocator/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups the endpoint handlers mounted by New
type Handlers struct {
	Auth       *handlers.AuthHandler
	Assets     *handlers.AssetHandler
	Portfolios *handlers.PortfolioHandler
}

// New builds the gin engine with every route of the API
func New(h Handlers, verifier middleware.TokenVerifier) *gin.Engine {
	handlers.RegisterValidation()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", handlers.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", h.Auth.Register)
	authRoutes.POST("/login", h.Auth.Login)
	authRoutes.GET("/me", middleware.RequireAuth(verifier), h.Auth.Me)

	assets := api.Group("/assets", middleware.RequireAuth(verifier))
	assets.GET("/search", h.Assets.Search)
	assets.GET("/quote", h.Assets.Quote)

	portfolios := api.Group("/portfolios", middleware.RequireAuth(verifier))
	portfolios.GET("", h.Portfolios.List)
	portfolios.POST("", h.Portfolios.Create)
	portfolios.GET("/:id", h.Portfolios.Get)
	portfolios.PATCH("/:id/items/:itemId", h.Portfolios.UpdateItem)
	portfolios.POST("/:id/refresh", h.Portfolios.Refresh)

	return router
}

// WithCORS lets the browser UI served from origins call the API with credentials
func WithCORS(next http.Handler, origins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
