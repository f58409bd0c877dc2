package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/placepulse/backend-go/internal/handler"
	"github.com/placepulse/backend-go/internal/middleware"
)

// Handlers collects everything the router wires up
type Handlers struct {
	Tracking     *handler.TrackingHandler
	Contribution *handler.ContributionHandler
	Vote         *handler.VoteHandler
	Token        *handler.TokenHandler
}

// SetupRouter builds the gin engine with all routes and middleware
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.RateLimit(300, time.Minute))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "PlacePulse backend is running",
		})
	})

	api := r.Group("/api/v1")
	{
		tracking := api.Group("/tracking")
		{
			tracking.POST("/:sessionId/start", h.Tracking.Start)
			tracking.POST("/:sessionId/fixes", h.Tracking.SubmitFix)
			tracking.POST("/:sessionId/stop", h.Tracking.Stop)
		}

		api.POST("/contributions", h.Contribution.Reward)

		votes := api.Group("/votes")
		{
			votes.GET("/weight", h.Vote.Weight)
		}
		api.GET("/visits/:sessionId", h.Vote.Visits)

		tokens := api.Group("/tokens")
		{
			tokens.GET("/supply", h.Token.Supply)
			tokens.GET("/balance/:sessionId", h.Token.Balance)
			tokens.GET("/transactions/:sessionId", h.Token.Transactions)
			tokens.POST("/spend", h.Token.Spend)
		}
	}

	return r
}
