package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"gator-chat/internal/engine"
	"gator-chat/internal/middleware"
	"gator-chat/internal/notify"
	"gator-chat/internal/utils"
	"gator-chat/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	ws "github.com/gorilla/websocket"
)

// Server holds all HTTP dependencies
type Server struct {
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Registry       *notify.Registry
	Validator      *middleware.TokenValidator
	Metrics        *utils.MetricsCollector
	Logger         *slog.Logger
	CORS           *middleware.CORSConfig
	MetricsEnabled bool

	upgrader ws.Upgrader
}

// NewServer creates a new Server instance with the given components
func NewServer(
	eng *engine.Engine,
	hub *websocket.Hub,
	registry *notify.Registry,
	validator *middleware.TokenValidator,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) *Server {
	s := &Server{
		Engine:         eng,
		Hub:            hub,
		Registry:       registry,
		Validator:      validator,
		Metrics:        metrics,
		Logger:         logger,
		CORS:           middleware.DefaultCORSConfig(nil),
		MetricsEnabled: true,
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.CORS.OriginAllowed(origin)
		},
	}
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(s.CORS))

	r.Get("/health", s.HandleHealth())
	if s.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	r.Get("/ws", s.HandleWebSocket())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.Validator.Authenticate)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers())
			r.Get("/me", s.HandleCurrentUser())
			r.Post("/me", s.HandleUpsertUser())
			r.Post("/me/offline", s.HandleSetOffline())
			r.Put("/me/avatar", s.HandleRegenerateAvatar())
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.HandleListConversations())
			r.Post("/direct", s.HandleResolveDirect())
			r.Post("/groups", s.HandleCreateGroup())

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.HandleDeleteGroup())
				r.Get("/members", s.HandleListMembers())
				r.Post("/members", s.HandleAddMembers())
				r.Delete("/members/{memberId}", s.HandleKickMember())
				r.Get("/messages", s.HandleListMessages())
				r.Post("/messages", s.HandleSendMessage())
				r.Get("/typing", s.HandleCurrentTyper())
				r.Put("/typing", s.HandleSetTyping())
				r.Delete("/typing", s.HandleClearTyping())
				r.Post("/read", s.HandleMarkRead())
				r.Get("/unread", s.HandleUnreadCount())
			})
		})

		r.Delete("/messages/{id}", s.HandleDeleteMessage())
	})
	return r
}
