package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes read endpoints over the balance mirror.
type Handler struct {
	service *Service
	redact  bool
}

// NewHandler builds a wallet HTTP handler. With redact set, private keys are blanked in responses.
func NewHandler(service *Service, redact bool) *Handler {
	return &Handler{service: service, redact: redact}
}

// ParamID parses a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// StatusError maps balance store errors onto fiber errors.
func StatusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// EdgeWallet returns the wallet trio of an edge.
func (h *Handler) EdgeWallet(c *fiber.Ctx) error {
	edgeID, err := ParamID(c, "edgeId")
	if err != nil {
		return err
	}
	view, err := h.service.GetEdgeWallet(c.UserContext(), edgeID)
	if err != nil {
		return StatusError(err)
	}
	if h.redact {
		view = view.Redacted()
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Balance returns a single wallet view.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID, err := ParamID(c, "walletId")
	if err != nil {
		return err
	}
	view, err := h.service.GetWalletBalance(c.UserContext(), walletID)
	if err != nil {
		return StatusError(err)
	}
	if h.redact {
		view.PrivateKey = ""
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":   walletID,
		"public_key":  view.PublicKey,
		"private_key": view.PrivateKey,
		"token_id":    view.TokenID,
		"volume":      view.Volume,
	})
}
