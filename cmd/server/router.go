package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cumo/internal/api"
	apiMiddleware "github.com/phrazzld/cumo/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewCORS())

	// A nil *gemini.Parser must not reach the handler as a non-nil interface.
	var parserStatus api.ParserStatus
	if app.parser != nil {
		parserStatus = app.parser
	}
	healthHandler := api.NewHealthHandler(parserStatus, app.manager)
	scheduleHandler := api.NewScheduleHandler(app.scheduler, app.logger)
	settingsHandler := api.NewSettingsHandler(app.settings, app.calendar, app.logger)

	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		if app.jwt != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(app.jwt).Authenticate)
		}

		r.Post("/parse", scheduleHandler.Parse)
		r.Post("/schedule", scheduleHandler.Schedule)
		r.Post("/debug/enqueue", scheduleHandler.DebugEnqueue)
		r.Get("/tasks/{id}", scheduleHandler.GetTask)

		r.Get("/settings", settingsHandler.GetSettings)
		r.Post("/settings/calendar", settingsHandler.SelectCalendar)
		r.Get("/calendars", settingsHandler.ListCalendars)
	})

	return r
}
