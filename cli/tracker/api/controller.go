package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	Handler *Handler
	router  *gin.Engine
}

func NewController(handler *Handler) *Controller {
	router := gin.Default()

	locations := router.Group("/locations")
	{
		locations.GET("", handler.GetAllLocations)
		locations.GET("/:id", handler.GetLocation)
		locations.PUT("/:id", handler.UpdateLocation)
	}

	router.GET("/nearby", handler.FindNearby)
	router.GET("/sync/stats", handler.GetSyncStats)
	router.GET("/stream/:id", handler.StreamLocation)

	simulator := router.Group("/simulator/vehicles")
	{
		simulator.POST("", handler.AddSimulatedVehicle)
		simulator.DELETE("/:id", handler.RemoveSimulatedVehicle)
	}

	router.GET("/health", handler.Health)

	return &Controller{Handler: handler, router: router}
}

func (c *Controller) Run(port int32) error {
	return c.router.Run(fmt.Sprintf(":%d", port))
}

// Router exposes the engine for tests.
func (c *Controller) Router() *gin.Engine {
	return c.router
}
