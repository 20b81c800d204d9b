// Package api exposes the function, item, and media services over REST.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"fnbox/fault"
	"fnbox/function"
	"fnbox/media"
	"fnbox/store"
)

// ItemStore is the item persistence the handler needs.
type ItemStore interface {
	CreateItem(ctx context.Context, item *store.Item) error
	GetItem(ctx context.Context, id uint) (*store.Item, error)
	ListItems(ctx context.Context) ([]store.Item, error)
	SaveItem(ctx context.Context, item *store.Item) error
	DeleteItem(ctx context.Context, id uint) error
}

type Handler struct {
	functions *function.Service
	items     ItemStore
	media     *media.Service
	log       *zap.Logger
}

func New(functions *function.Service, items ItemStore, mediaSvc *media.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{functions: functions, items: items, media: mediaSvc, log: log}
}

// RouterOptions control the cross-cutting middleware on the router.
type RouterOptions struct {
	AllowedOrigins []string
	JWTSecret      string
}

// Router assembles the full route tree.
func (h *Handler) Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}
	if opts.JWTSecret != "" {
		r.Use(jwtAuth(opts.JWTSecret))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/functions", func(r chi.Router) {
			r.Get("/", h.ListFunctions)
			r.Post("/", h.RegisterFunction)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.GetFunction)
				r.Put("/", h.UpdateFunction)
				r.Delete("/", h.DeactivateFunction)
				r.Post("/execute", h.ExecuteFunction)
				r.Get("/versions", h.ListFunctionVersions)
				r.Get("/executions", h.ListFunctionExecutions)
			})
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Put("/", h.UpdateItem)
				r.Delete("/", h.DeleteItem)
			})
		})

		r.Route("/media", func(r chi.Router) {
			r.Post("/", h.UploadMedia)
			r.Get("/by-type/{type}", h.MediaByType)
			r.Get("/by-timespan", h.MediaByTimespan)
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	writeJSON(w, statusFor(kind), map[string]string{
		"error":      err.Error(),
		"error_kind": string(kind),
	})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Conflict:
		return http.StatusConflict
	case fault.SyntaxInvalid, fault.UnsafeConstruct, fault.SignatureInvalid,
		fault.SchemaInvalid, fault.ParameterValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a request body preserving number fidelity, so integer
// parameters stay integers all the way to the sandbox.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fault.New(fault.ParameterValidationFailed, "malformed request body: %s", err)
	}
	return nil
}
