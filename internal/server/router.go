package server

import (
	handler "bidout-auction/services/bidding/handler"
	"bidout-auction/services/bidding/helpers"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // tag every request
	router.Use(RequestLoggerMiddleware) // custom request logging

	helpers.RegisterValidators()

	biddingHandler := handler.NewBiddingHandler(biddingService)

	listings := router.Group("/listings")
	{
		listings.POST("", helpers.RequireUser, biddingHandler.CreateListingHandler)
		listings.GET("/:slug", biddingHandler.GetListingHandler)
		listings.PATCH("/:slug/active", helpers.RequireUser, biddingHandler.SetActiveHandler)
		listings.GET("/:slug/bids", biddingHandler.GetBidsByListingHandler)
		listings.POST("/:slug/bids", helpers.RequireUser, biddingHandler.PlaceBidHandler)
		listings.GET("/:slug/winning", biddingHandler.GetWinningBidHandler)
	}

	auctioneer := router.Group("/auctioneer", helpers.RequireUser)
	{
		auctioneer.GET("/listings/:slug/bids", biddingHandler.GetOwnerBidsHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/listings", biddingHandler.GetListingsByUserHandler)
	}

	return router
}
