// Package httpx is the HTTP boundary adapter for the core planner (spec
// §6): a JSON Plan RPC and a websocket hub for the observational output
// topics. The teacher's own router/controller layer (pkg/http/router in
// Navigatorx) was not present in the retrieval pack, so this package is
// hand-authored in the conventions its go.mod implies: httprouter for
// routing, alice for middleware chaining, rs/cors for browser clients,
// go-playground/validator for request DTOs.
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldcortex/terrane/pkg/planner"
	en "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Config configures the HTTP server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Addr: ":8080", RequestTimeout: 5 * time.Second}
}

// Server wires the Plan RPC and the observer hub behind one httprouter
// instance with a small, fixed middleware chain.
type Server struct {
	cfg    Config
	planr  *planner.Planner
	hub    *Hub
	log    *zap.Logger
	valid  *validator.Validate
	trans  ut.Translator
	router *httprouter.Router
	http   *http.Server
}

func NewServer(cfg Config, planr *planner.Planner, hub *Hub, log *zap.Logger) *Server {
	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	s := &Server{
		cfg:    cfg,
		planr:  planr,
		hub:    hub,
		log:    log,
		valid:  validate,
		trans:  trans,
		router: httprouter.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.POST("/plan", s.handlePlan)
	s.router.GET("/observe", s.handleObserve)
	s.router.GET("/doc/*any", s.handleSwagger)
}

// handleSwagger serves the Plan RPC's API docs, the way the teacher's
// router registers /doc/*any against httpSwagger.WrapHandler.
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httpSwagger.WrapHandler(w, r)
}

// Use builds the middleware chain (rs/cors, request-timeout) the way the
// teacher's pkg/http.Server.Use composes alice.New(...).Then(router).
func (s *Server) Use() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	chain := alice.New(c.Handler, s.withTimeout)
	return chain.Then(s.router)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) ListenAndServe() error {
	s.http = &http.Server{Addr: s.cfg.Addr, Handler: s.Use()}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
