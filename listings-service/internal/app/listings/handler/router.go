package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goodbites/pkg/logger"
	"goodbites/pkg/metrics"
)

const serviceName = "listings-service"

// SetupRoutes собирает gin.Engine сервиса. assetHandler может быть nil.
func SetupRoutes(listingHandler *ListingHandler, streamHandler *StreamHandler, assetHandler *AssetHandler, authMiddleware *AuthMiddleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware(serviceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	listings := router.Group("/listings")
	{
		listings.GET("", listingHandler.GetListings)
		listings.GET("/stream", streamHandler.StreamListings)
		listings.GET("/:id", listingHandler.GetListing)
		listings.GET("/:id/stream", streamHandler.StreamListing)
		listings.GET("/:id/reviews", listingHandler.GetReviews)
		listings.GET("/:id/reviews/stream", streamHandler.StreamReviews)

		protected := listings.Group("")
		protected.Use(authMiddleware.Authenticate())
		{
			protected.POST("/:id/reviews", listingHandler.AddReview)
			protected.PUT("/:id/photo", listingHandler.UploadPhoto)
		}
	}

	if assetHandler != nil {
		router.GET("/assets/*key", assetHandler.GetAsset)
	}

	return router
}
