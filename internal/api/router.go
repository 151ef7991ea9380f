package api

import (
	"net/http"
	"strings"
	"time"

	"proconnect/internal/api/handler"
	"proconnect/internal/api/middleware"
	"proconnect/internal/app/service"
	"proconnect/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Projects      *service.ProjectService
	Friends       *service.FriendService
	Notifications *service.NotificationService
	Admin         *service.AdminService
	Contest       *service.ContestService
	Certificates  *service.CertificateService
}

type Options struct {
	ClientOrigin string
}

func NewRouter(svc Services, auth *middleware.Auth, opts Options, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	allowed := origins(opts.ClientOrigin)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		// Browsers refuse credentials with a wildcard origin.
		AllowCredentials: !(len(allowed) == 1 && allowed[0] == "*"),
		MaxAge:           300,
	}))

	// Verifies token, puts claims in context
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	certHandler := handler.NewCertificateHandler(svc.Certificates, log)
	r.With(auth.Authenticator).Get("/uploads/certificates/{file}", certHandler.ServeFile)

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(svc.Auth, log)
		v1.Route("/auth", authHandler.RegisterRoutes)

		v1.Group(func(priv chi.Router) {
			priv.Use(auth.Authenticator)

			priv.Route("/users", handler.NewUserHandler(svc.Users, svc.Projects, log).RegisterRoutes)
			priv.Route("/projects", handler.NewProjectHandler(svc.Projects, log).RegisterRoutes)
			priv.Route("/friends", handler.NewFriendHandler(svc.Friends, log).RegisterRoutes)
			priv.Route("/notifications", handler.NewNotificationHandler(svc.Notifications, log).RegisterRoutes)
			priv.Route("/contest", handler.NewContestHandler(svc.Contest, log).RegisterRoutes)
			priv.Route("/certificates", certHandler.RegisterRoutes)
			priv.Route("/admin", handler.NewAdminHandler(svc.Admin, log).RegisterRoutes)
		})
	})

	return r
}

func origins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
