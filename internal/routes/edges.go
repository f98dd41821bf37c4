package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/provisioning"
	"github.com/congo-pay/edgewallet/internal/reconcile"
	"github.com/congo-pay/edgewallet/internal/transfer"
	"github.com/congo-pay/edgewallet/internal/wallet"
)

// RegisterEdgeRoutes mounts the wallet, provisioning, transfer and reconcile
// endpoints. The mutating handlers run behind guard.
func RegisterEdgeRoutes(router fiber.Router, d Deps, guard []fiber.Handler) {
	redact := d.Cfg.RedactPrivateKeys
	wallets := wallet.NewHandler(d.App.Wallets, redact)
	prov := provisioning.NewHandler(d.App.Provisioning, redact)
	xfer := transfer.NewHandler(d.App.Transfers, redact)
	recon := reconcile.NewHandler(d.App.Reconciler)

	router.Get("/edges/:edgeId/wallet", wallets.EdgeWallet)
	router.Get("/wallets/:walletId/balance", wallets.Balance)
	router.Get("/edges/:edgeId/reconcile", recon.Check)

	router.Post("/edges/:edgeId/wallet", guarded(guard, prov.Provision)...)
	router.Post("/edges/:edgeId/transfer", guarded(guard, xfer.Transfer)...)
	router.Post("/edges/:edgeId/reconcile", guarded(guard, recon.Repair)...)
}

func guarded(guard []fiber.Handler, h fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(guard)+1)
	return append(append(chain, guard...), h)
}
