package testutil

import (
	"github.com/gin-gonic/gin"

	"github.com/EgehanKilicarslan/tokenguard/internal/api"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/service"
	"github.com/EgehanKilicarslan/tokenguard/internal/handler"
	"github.com/EgehanKilicarslan/tokenguard/internal/middleware"
)

// SetupRouterWithMocks creates the full router around the given service
func SetupRouterWithMocks(authService service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := TestLogger()

	return api.SetupRouter(
		TestConfig().CORSAllowedOrigins,
		handler.NewAuthHandler(authService, logger),
		handler.NewUserHandler(authService, logger),
		middleware.NewAuthMiddleware(authService, logger),
	)
}
