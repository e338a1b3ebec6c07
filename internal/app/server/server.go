package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/weerhq/weer/internal/app/repository"
	"github.com/weerhq/weer/internal/app/service"
	inthttp "github.com/weerhq/weer/internal/http/handler"
	"github.com/weerhq/weer/internal/http/middleware"
	httpUtil "github.com/weerhq/weer/internal/http/util"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server wires together.
type Dependencies struct {
	Logger         *zap.Logger
	Redis          *redis.Client
	Store          repository.Store
	LinkService    service.LinkService
	Usernames      *service.UsernameService
	VisitPublisher *service.VisitPublisher
	SessionSigner  *httpUtil.TokenSigner
	AuthSigner     *httpUtil.TokenSigner
	Domain         string
	QRRenderer     inthttp.QRRenderer
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
	s.app.Use(middleware.Auth(s.deps.AuthSigner))
	s.app.Use(middleware.Session(s.deps.Store, s.deps.SessionSigner, s.deps.Logger))
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		Domain:      s.deps.Domain,
		QRRenderer:  s.deps.QRRenderer,
	})
	apiHandler.Register(s.app)

	usernameHandler := inthttp.NewUsernameHandler(inthttp.UsernameDeps{
		Logger:    s.deps.Logger,
		Usernames: s.deps.Usernames,
	})
	usernameHandler.Register(s.app)

	// Registered last: the redirect routes swallow every remaining path.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:         s.deps.Logger,
		LinkService:    s.deps.LinkService,
		VisitPublisher: s.deps.VisitPublisher,
		Domain:         s.deps.Domain,
	})
	redirectHandler.Register(s.app)
}
