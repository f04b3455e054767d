package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, opts Options) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Stand API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, opts.DB, opts.Redis))

	// Messaging platform callbacks.
	r.Get("/webhook", handleWebhookVerify(opts.VerifyToken))
	r.Post("/webhook", handleWebhookEvents(logger, opts))

	// Public API, used by on-site screens polling for raffle results and by
	// clients that integrate directly instead of through DMs.
	r.Post("/api/join", handleJoin(opts))
	r.Post("/api/validate", handleValidate(opts))
	r.Post("/api/score", handleStoreScore(opts))
	r.Get("/api/games/{gameID}", handlePublicGame(opts))
	r.Get("/api/games/{gameID}/ranking", handleRanking(opts))

	// Admin auth.
	r.Post("/api/admin/login", handleAdminLogin(opts.DB))
	r.Post("/api/admin/logout", handleAdminLogout(opts.DB))
	r.Get("/api/admin/me", handleAdminMe(opts.DB))

	// Admin API, owner-guarded game management.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(opts.DB))

		r.Get("/games", handleListGames(opts))
		r.Post("/games", handleCreateGame(opts))
		r.Get("/games/{gameID}", handleGetGame(opts))
		r.Put("/games/{gameID}", handleUpdateGame(opts))
		r.Delete("/games/{gameID}", handleDeleteGame(opts))
		r.Get("/games/{gameID}/players", handleListPlayers(opts))

		r.Put("/games/{gameID}/quiz", handleConfigureQuiz(opts))
		r.Get("/games/{gameID}/quiz", handleExportQuiz(opts))
		r.Post("/games/{gameID}/quiz/start", handleStartQuiz(opts))

		r.Post("/games/{gameID}/raffle", handleDrawRaffle(opts))

		r.Get("/catalogs/{catalogID}", handleGetCatalog(opts))
		r.Put("/catalogs/{catalogID}", handleReplaceCatalog(opts))
	})
}
