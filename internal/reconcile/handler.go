package reconcile

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/ledger"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// Handler exposes drift reports and repairs.
type Handler struct {
	reconciler *Reconciler
}

// NewHandler constructs a reconcile handler.
func NewHandler(r *Reconciler) *Handler {
	return &Handler{reconciler: r}
}

// Check reports drift for an edge.
func (h *Handler) Check(c *fiber.Ctx) error {
	edgeID, err := wallet.ParamID(c, "edgeId")
	if err != nil {
		return err
	}
	report, err := h.reconciler.Check(c.UserContext(), edgeID)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(report)
}

// Repair overwrites drifted local volumes with ledger volumes.
func (h *Handler) Repair(c *fiber.Ctx) error {
	edgeID, err := wallet.ParamID(c, "edgeId")
	if err != nil {
		return err
	}
	report, err := h.reconciler.Repair(c.UserContext(), edgeID)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(report)
}

func statusError(err error) error {
	if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrSubmission) {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return wallet.StatusError(err)
}
