package provisioning

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/ledger"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// Handler exposes the provisioning endpoint.
type Handler struct {
	service *Service
	redact  bool
}

// NewHandler constructs a provisioning handler.
func NewHandler(service *Service, redact bool) *Handler {
	return &Handler{service: service, redact: redact}
}

// Provision creates the wallet trio of an edge. The request body is the fungible asset payload.
func (h *Handler) Provision(c *fiber.Ctx) error {
	edgeID, err := wallet.ParamID(c, "edgeId")
	if err != nil {
		return err
	}
	asset, err := DecodeAsset(c.Body())
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	view, err := h.service.Provision(c.UserContext(), ProvisionInput{EdgeID: edgeID, Asset: asset})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrSubmission):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		default:
			return wallet.StatusError(err)
		}
	}
	if h.redact {
		view = view.Redacted()
	}
	return c.Status(http.StatusCreated).JSON(view)
}
