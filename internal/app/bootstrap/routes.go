// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/tellevo/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tellevo/internal/app/features/health"
	journeysfeature "github.com/dalemusser/tellevo/internal/app/features/journeys"
	loginfeature "github.com/dalemusser/tellevo/internal/app/features/login"
	logoutfeature "github.com/dalemusser/tellevo/internal/app/features/logout"
	pagesfeature "github.com/dalemusser/tellevo/internal/app/features/pages"
	passwordrestorefeature "github.com/dalemusser/tellevo/internal/app/features/passwordrestore"
	qrscannerfeature "github.com/dalemusser/tellevo/internal/app/features/qrscanner"
	registerfeature "github.com/dalemusser/tellevo/internal/app/features/register"
	sessionstatefeature "github.com/dalemusser/tellevo/internal/app/features/sessionstate"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for TeLlevo.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. It mounts the JSON API under /api, the live
// websocket streams next to their one-shot endpoints, and the browser page
// shells under / and /home.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if active == nil {
		return nil, errors.New("bootstrap: BuildHandler called before Startup")
	}
	return newRouter(active, deps.MongoClient, logger)
}

func newRouter(svc *services, client *mongo.Client, logger *zap.Logger) (chi.Router, error) {
	errLog := errorsfeature.NewErrorLogger(logger)

	pagesHandler, err := pagesfeature.NewHandler(logger)
	if err != nil {
		logger.Error("page templates failed to parse", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auditlog.Middleware)

	// Set before mounting so subrouters inherit it.
	r.NotFound(notFound)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(client, logger)
	healthHandler.LiveSubscribers = svc.Journeys.Feed().Len
	healthHandler.AuthSubscribers = svc.Auth.Subscribers
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication API
	loginHandler := loginfeature.NewHandler(svc.Auth, svc.Limiter, svc.Audit, errLog, logger)
	logoutHandler := logoutfeature.NewHandler(svc.Auth, errLog, logger)
	registerHandler := registerfeature.NewHandler(svc.Auth, errLog, logger)
	restoreHandler := passwordrestorefeature.NewHandler(svc.Auth, errLog, logger)
	stateHandler := sessionstatefeature.NewHandler(svc.Auth, svc.Streamer, errLog, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Mount("/login", loginfeature.Routes(loginHandler))
		r.Mount("/logout", logoutfeature.Routes(logoutHandler))
		r.Mount("/register", registerfeature.Routes(registerHandler))
		r.Mount("/state", sessionstatefeature.Routes(stateHandler))
		r.Mount("/", passwordrestorefeature.Routes(restoreHandler))
	})

	// Journeys API and live streams
	journeysHandler := journeysfeature.NewHandler(svc.Journeys, svc.Streamer, svc.Events, svc.Audit, errLog, logger)
	r.Mount("/api/journeys", journeysfeature.Routes(journeysHandler, svc.Auth))

	scanHandler := qrscannerfeature.NewHandler(journeysHandler, errLog, logger)
	r.Mount("/api/qr-scanner", qrscannerfeature.Routes(scanHandler, svc.Auth))

	// Browser pages. The login and logout forms post to the page paths.
	pagesfeature.PublicRoutes(r, pagesHandler)
	r.Post("/login", loginHandler.HandleLogin)
	r.Post("/logout", logoutHandler.ServeLogout)
	r.Mount("/home", pagesfeature.HomeRoutes(pagesHandler, svc.Auth))

	return r, nil
}

// notFound answers unknown API paths with a JSON alert and sends every
// other unknown path to the sign-in page.
func notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		alert.WriteJSON(w, http.StatusNotFound, alert.New(alert.Warning, "Not found", "No such endpoint."))
		return
	}
	pagesfeature.RedirectToLogin(w, r)
}
