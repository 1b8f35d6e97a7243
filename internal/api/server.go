package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"

	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/web"
)

// Server represents the Fuego API server.
type Server struct {
	fuego *fuego.Server
	deps  *Dependencies
	port  int
	log   *logger.Logger
}

// Dependencies contains all service dependencies.
type Dependencies struct {
	Messages MessageService
	Database HealthChecker // optional
	Hub      *web.Hub      // optional
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
	CORSOrigins []string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies, log *logger.Logger) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	// Set OpenAPI info
	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	srv := &Server{
		fuego: s,
		deps:  deps,
		port:  cfg.Port,
		log:   log,
	}

	// Add Chi middleware (Fuego is net/http compatible)
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, srv.requestLogger)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Recoverer)
	fuego.Use(s, cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
	}))

	if deps.Hub != nil {
		deps.Hub.AllowOrigins(origins)
	}

	srv.registerRoutes()

	return srv
}

// requestLogger stores a request-scoped logger carrying the request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.log.WithRequestID(middleware.GetReqID(r.Context()))
		l.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r.WithContext(logger.IntoContext(r.Context(), l)))
	})
}

func (s *Server) registerRoutes() {
	// Health check
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	// Group messages API
	groupsGroup := fuego.Group(s.fuego, "/api/v1/groups",
		option.Tags("Messages"),
	)

	fuego.Post(groupsGroup, "/{group_id}/messages", s.sendMessage,
		option.Summary("Send Message"),
		option.Description("Validates recipients, stores the message and queues delivery. Delivery is asynchronous: poll the status endpoint for outcomes."),
		option.DefaultStatusCode(http.StatusCreated),
	)

	fuego.Get(groupsGroup, "/{group_id}/messages", s.listGroupMessages,
		option.Summary("List Group Messages"),
		option.Description("Returns the group's messages, newest first"),
		option.Query("limit", "Maximum messages to return (default: 50, max: 100)"),
	)

	// Messages API
	messagesGroup := fuego.Group(s.fuego, "/api/v1/messages",
		option.Tags("Messages"),
	)

	fuego.Get(messagesGroup, "/{id}", s.getMessage,
		option.Summary("Get Message"),
		option.Description("Returns a message with its recipients"),
	)

	fuego.Get(messagesGroup, "/{id}/status", s.getMessageStatus,
		option.Summary("Get Delivery Status"),
		option.Description("Returns per-status recipient counts and the success rate"),
	)

	fuego.Post(messagesGroup, "/{id}/retry", s.retryMessage,
		option.Summary("Retry Failed Recipients"),
		option.Description("Resets FAILED recipients to PENDING and queues them again. Returns 409 while the message is being processed."),
	)

	// Presets API
	fuego.Get(s.fuego, "/api/v1/presets", s.listPresets,
		option.Summary("List Presets"),
		option.Description("Returns the configured message presets"),
		option.Tags("Presets"),
	)

	// WebSocket status events
	if s.deps.Hub != nil {
		fuego.GetStd(s.fuego, "/ws", func(w http.ResponseWriter, r *http.Request) {
			web.ServeWs(s.deps.Hub, w, r)
		},
			option.Summary("Delivery Events"),
			option.Description("WebSocket stream of recipient status changes"),
			option.Tags("System"),
		)
	}
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.fuego.Shutdown(ctx)
}

// Mux returns the underlying ServeMux for mounting additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.fuego.Mux
}
