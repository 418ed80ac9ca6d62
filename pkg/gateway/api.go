package gateway

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// Controller drives client sessions on behalf of the REST API.
type Controller interface {
	Action(clientID, action string) error
	State(clientID string) (protocol.StateData, bool)
}

// ErrNoController is returned by control routes when no Controller is set.
var ErrNoController = errors.New("gateway: no controller configured")

// RegisterAPIRoutes registers API routes for client management. ctl may be
// nil, in which case the control routes answer 503.
func (g *Gateway) RegisterAPIRoutes(api fiber.Router, ctl Controller) {
	clients := api.Group("/clients")

	// List connected pages
	clients.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"clients": g.GetClientInfos(),
			"count":   g.ClientCount(),
		})
	})

	// Get gateway stats
	clients.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(g.GetStats())
	})

	// Session state for one page
	clients.Get("/:id/state", func(c *fiber.Ctx) error {
		if ctl == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": ErrNoController.Error()})
		}
		state, ok := ctl.State(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not connected"})
		}
		return c.JSON(state)
	})

	// Start or exit AR on a page, as if its button had been pressed
	for _, action := range []string{protocol.ActionStart, protocol.ActionExit} {
		action := action
		clients.Post("/:id/"+action, func(c *fiber.Ctx) error {
			if ctl == nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": ErrNoController.Error()})
			}
			clientID := c.Params("id")
			if g.GetClient(clientID) == nil {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not connected"})
			}
			if err := ctl.Action(clientID, action); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "action": action})
		})
	}
}
