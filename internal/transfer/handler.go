package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/ledger"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	service *Service
	redact  bool
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service, redact bool) *Handler {
	return &Handler{service: service, redact: redact}
}

// Transfer moves one transfer amount along an edge.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	edgeID, err := wallet.ParamID(c, "edgeId")
	if err != nil {
		return err
	}

	view, err := h.service.Transfer(c.UserContext(), edgeID)
	if err != nil {
		var partial *PartialApplyError
		switch {
		case errors.As(err, &partial):
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error":        err.Error(),
				"edge_id":      partial.EdgeID,
				"ledger_tx_id": partial.LedgerTxID,
			})
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNoSpendableOutput):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrSubmission), errors.Is(err, ledger.ErrDoubleSpend), errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	if h.redact {
		view = view.Redacted()
	}
	return c.Status(http.StatusOK).JSON(view)
}
