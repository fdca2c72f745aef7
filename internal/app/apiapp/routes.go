package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/prymskiwen/crewvar-sub001/internal/config"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	blockssvc "github.com/prymskiwen/crewvar-sub001/internal/services/blocks"
	modsvc "github.com/prymskiwen/crewvar-sub001/internal/services/moderation"
	presencesvc "github.com/prymskiwen/crewvar-sub001/internal/services/presence"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	requestssvc "github.com/prymskiwen/crewvar-sub001/internal/services/requests"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/handlers"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/ws"
)

type Dependencies struct {
	AuthService       *authsvc.Service
	PrivacyService    *privacysvc.Service
	RequestsService   *requestssvc.Service
	BlocksService     *blockssvc.Service
	ModerationService *modsvc.Service
	PresenceTracker   *presencesvc.Tracker
	PresenceHub       *ws.PresenceHub
	Logger            *zap.Logger
	Config            config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	internalHandler := handlers.NewInternalHandler(deps.AuthService, deps.PrivacyService)
	settingsHandler := handlers.NewSettingsHandler(deps.PrivacyService)
	visibilityHandler := handlers.NewVisibilityHandler(deps.PrivacyService)
	requestsHandler := handlers.NewRequestsHandler(deps.RequestsService)
	blocksHandler := handlers.NewBlocksHandler(deps.BlocksService)
	reportsHandler := handlers.NewReportsHandler(deps.ModerationService)
	adminModerationHandler := handlers.NewAdminModerationHandler(deps.ModerationService, deps.PrivacyService)
	presenceHandler := handlers.NewPresenceHandler(deps.PresenceTracker)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	staffRoleMW := RequireRole("ADMIN", "MODERATOR")
	internalMW := InternalAuthMiddleware(deps.Config.Auth.InternalToken, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/internal", func(r chi.Router) {
		r.Use(internalMW)
		r.Post("/sessions", internalHandler.IssueSession)
		r.Post("/users", internalHandler.ProvisionUser)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW)

		r.Get("/settings/privacy", settingsHandler.Get)
		r.Put("/settings/privacy", settingsHandler.Update)
		r.Get("/users/{userID}/visibility", visibilityHandler.Get)

		r.Post("/requests", requestsHandler.Send)
		r.Get("/requests/incoming", requestsHandler.Incoming)
		r.Get("/requests/outgoing", requestsHandler.Outgoing)
		r.Post("/requests/{requestID}/accept", requestsHandler.Accept)
		r.Post("/requests/{requestID}/decline", requestsHandler.Decline)
		r.Post("/requests/{requestID}/cancel", requestsHandler.Cancel)
		r.Get("/connections", requestsHandler.Connections)

		r.Post("/blocks", blocksHandler.Block)
		r.Delete("/blocks/{userID}", blocksHandler.Unblock)
		r.Get("/blocks", blocksHandler.List)

		r.Post("/reports", reportsHandler.Submit)

		r.Post("/presence/status", presenceHandler.UpdateStatus)
		r.Get("/presence/{userID}", presenceHandler.GetStatus)
		r.Post("/presence/typing/start", presenceHandler.StartTyping)
		r.Post("/presence/typing/stop", presenceHandler.StopTyping)
		r.Get("/rooms/{roomID}/typing", presenceHandler.RoomTyping)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, staffRoleMW)

		r.Get("/reports", adminModerationHandler.ListReports)
		r.Get("/reports/{reportID}", adminModerationHandler.GetReport)
		r.Put("/reports/{reportID}/status", adminModerationHandler.UpdateReportStatus)
		r.Get("/users/{userID}/reports", adminModerationHandler.ReportsAgainstUser)
		r.Post("/actions", adminModerationHandler.PerformAction)
		r.Get("/users/{userID}/actions", adminModerationHandler.ActionsForUser)
		r.Get("/activities", adminModerationHandler.ListActivities)
		r.Post("/activities/{activityID}/resolve", adminModerationHandler.ResolveActivity)
		r.Get("/stats", adminModerationHandler.Stats)
		r.Post("/verification", adminModerationHandler.SetVerification)
	})

	if deps.PresenceHub != nil {
		r.With(authMW).Get("/ws/presence", deps.PresenceHub.Serve)
	}
}
