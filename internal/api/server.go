package api

import (
	"encoding/json"
	"net/http"
	"time"

	genapi "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/aws"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/ratelimit"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/USSTM/asset-backend/internal/swagger"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/oapi-codegen/runtime"
)

const signatureURLTTL = 15 * time.Minute

// Deps are the collaborators a Server is built from. Spec, Limiter and
// LoginLimiter are optional.
type Deps struct {
	DB            DatabaseService
	Redis         RedisPinger
	Tracker       *lifecycle.Tracker
	Resolver      *rbac.Resolver
	Authenticator *auth.Authenticator
	AuthService   AuthService
	Notifier      Notifier
	Storage       aws.ObjectStore
	Spec          *openapi3.T
	Limiter       ratelimit.Limiter
	LoginLimiter  ratelimit.Limiter
	Config        *config.Config
}

var _ genapi.StrictServerInterface = (*Server)(nil)

type Server struct {
	db            DatabaseService
	redis         RedisPinger
	tracker       *lifecycle.Tracker
	resolver      *rbac.Resolver
	authenticator *auth.Authenticator
	authService   AuthService
	notifier      Notifier
	storage       aws.ObjectStore
	spec          *openapi3.T
	limiter       ratelimit.Limiter
	loginLimiter  ratelimit.Limiter
	cfg           *config.Config
}

func NewServer(d Deps) *Server {
	return &Server{
		db:            d.DB,
		redis:         d.Redis,
		tracker:       d.Tracker,
		resolver:      d.Resolver,
		authenticator: d.Authenticator,
		authService:   d.AuthService,
		notifier:      d.Notifier,
		storage:       d.Storage,
		spec:          d.Spec,
		limiter:       d.Limiter,
		loginLimiter:  d.LoginLimiter,
		cfg:           d.Config,
	}
}

// Handler builds the full router: request context, logging, recovery, CORS,
// rate limiting, docs, then the validated API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	if s.cfg != nil {
		r.Use(middleware.NewCORSHandler(&s.cfg.CORS))
	}
	if s.limiter != nil {
		r.Use(middleware.RateLimit(s.limiter, middleware.ByClientIP))
	}

	if s.spec != nil {
		swagger.Mount(r, s.spec)
	}

	r.Group(func(r chi.Router) {
		if s.spec != nil {
			r.Use(s.validator())
		}

		strict := genapi.NewStrictHandlerWithOptions(s, nil, genapi.StrictHTTPServerOptions{
			RequestErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
				writeError(w, ValidationErr("Invalid request", []ErrorDetail{{Message: err.Error()}}))
			},
			ResponseErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
				s.fail(w, r, "Response", err)
			},
		})
		genapi.HandlerWithOptions(strict, genapi.ChiServerOptions{
			BaseRouter:  r,
			Middlewares: []genapi.MiddlewareFunc{s.requireScopedUser},
		})

		r.Route("/auth", func(r chi.Router) {
			if s.loginLimiter != nil {
				r.With(middleware.RateLimit(s.loginLimiter, middleware.ByClientIP)).Post("/login", s.Login)
			} else {
				r.Post("/login", s.Login)
			}
			r.Post("/refresh", s.Refresh)
			r.Post("/logout", s.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser, middleware.WithUserLogger)

			r.Get("/me", s.GetMe)
			r.Get("/me/notification-settings", s.GetNotificationSettings)
			r.Put("/me/notification-settings", s.UpdateNotificationSettings)

			r.Get("/users", s.ListUsers)
			r.Post("/users", s.CreateUser)
			r.Get("/departments", s.ListDepartments)
			r.Post("/departments", s.CreateDepartment)

			r.Route("/roles", func(r chi.Router) {
				r.Get("/", s.ListRoles)
				r.Post("/", s.CreateRole)
				r.Get("/{id}", s.GetRole)
				r.Put("/{id}", s.UpdateRole)
				r.Delete("/{id}", s.DeleteRole)
			})

			r.Route("/assets", func(r chi.Router) {
				r.Get("/", s.ListAssets)
				r.Post("/", s.CreateAsset)
				r.Get("/{id}", s.GetAsset)
				r.Put("/{id}", s.UpdateAsset)
				r.Delete("/{id}", s.DeleteAsset)
				r.Patch("/{id}/status", s.SetAssetStatus)
			})

			r.Route("/borrow", func(r chi.Router) {
				r.Get("/", s.ListBorrowRequests)
				r.Post("/", s.CreateBorrowRequest)
				r.Get("/{id}", s.GetBorrowRequest)
				r.Patch("/{id}", s.ReviewBorrowRequest)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.ListTransactions)
				r.Post("/", s.CreateTransaction)
				r.Get("/{id}", s.GetTransaction)
				r.Post("/{id}/approve", s.ApproveTransaction)
				r.Post("/{id}/reject", s.RejectTransaction)
				r.Post("/{id}/signature", s.SignTransaction)
				r.Post("/{id}/return", s.ReturnTransaction)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.ListNotifications)
				r.Post("/read-all", s.MarkAllNotificationsRead)
				r.Post("/{id}/read", s.MarkNotificationRead)
			})
		})
	})

	return r
}

// validator checks requests against the OpenAPI contract. BearerAuth is
// resolved by the authenticator, which puts the user in the context.
func (s *Server) validator() func(http.Handler) http.Handler {
	return nethttpmiddleware.OapiRequestValidatorWithOptions(s.spec, &nethttpmiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: s.authenticator.Authenticate,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			writeError(w, validationFailure(message, statusCode))
		},
	})
}

func validationFailure(message string, statusCode int) *ErrorBuilder {
	switch statusCode {
	case http.StatusUnauthorized:
		return Unauthorized("Authentication required")
	case http.StatusNotFound:
		return NotFound("Route")
	case http.StatusBadRequest:
		return ValidationErr("Request does not match the API contract", []ErrorDetail{{Message: message}})
	default:
		return InternalError("An unexpected error occurred.")
	}
}

// requireUser makes sure the request is authenticated even when it did not
// pass through the validator.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetAuthenticatedUser(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.authenticator.UserFromRequest(r)
		if err != nil {
			middleware.GetLoggerFromContext(r.Context()).Debug("Authentication failed", "error", err)
			writeError(w, Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// requireScopedUser authenticates the strict operations that declare
// BearerAuth; public ones pass straight through.
func (s *Server) requireScopedUser(next http.Handler) http.Handler {
	authed := s.requireUser(middleware.WithUserLogger(next))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(genapi.BearerAuthScopes).([]string); ok {
			authed.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *auth.AuthenticatedUser {
	user, _ := auth.GetAuthenticatedUser(r.Context())
	return user
}

// authorize writes 403 and returns false when the user lacks module:action.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, module string, action rbac.Action) (*auth.AuthenticatedUser, bool) {
	user := currentUser(r)
	if user == nil {
		writeError(w, Unauthorized("Authentication required"))
		return nil, false
	}
	if !s.resolver.HasPermission(user.Subject, module, action) {
		middleware.GetLoggerFromContext(r.Context()).Warn("Permission denied",
			"module", module, "action", action)
		writeError(w, PermissionDenied("Insufficient permissions"))
		return nil, false
	}
	return user, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id < 1 {
		writeError(w, ValidationErr("Invalid id", []ErrorDetail{{Field: "id", Message: "must be a positive integer"}}))
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, ValidationErr("Invalid request body", []ErrorDetail{{Message: err.Error()}}))
		return false
	}
	return true
}
