package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps bundles everything the HTTP surface talks to.
type Deps struct {
	Auth          *auth.Authenticator
	Slots         *SlotHandler
	Events        *EventHandler
	Registrations *RegistrationHandler
	Limiter       *ratelimit.Store
	TrustProxy    bool
	EnableCORS    bool
}

func secured(o *huma.Operation) {
	o.Security = []map[string][]string{{"bearerAuth": {}}, {"cookieAuth": {}}}
}

func RegisterRoutes(r *chi.Mux, d Deps) huma.API {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.EnableCORS {
		r.Use(cors)
	}
	r.Use(d.Auth.Middleware)

	// Initialize Huma API
	config := huma.DefaultConfig("Club Booking API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	huma.Get(api, "/events", d.Events.HandleListApproved)
	huma.Get(api, "/events/{id}", d.Events.HandleGet)
	huma.Post(api, "/events/{id}/registrations", d.Registrations.HandleRegister, func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
		if d.Limiter != nil {
			o.Middlewares = append(o.Middlewares, ratelimit.Middleware(api, d.Limiter, d.TrustProxy))
		}
	})

	// Principal routes
	huma.Get(api, "/me", HandleMe, secured)

	huma.Get(api, "/slots", d.Slots.HandleList, secured)
	huma.Get(api, "/slots/mine", d.Slots.HandleListMine, secured)
	huma.Get(api, "/slots/enrolled", d.Slots.HandleListEnrolled, secured)
	huma.Get(api, "/slots/{id}", d.Slots.HandleGet, secured)
	huma.Post(api, "/slots", d.Slots.HandleCreate, secured, created)
	huma.Put(api, "/slots/{id}", d.Slots.HandleUpdate, secured)
	huma.Delete(api, "/slots/{id}", d.Slots.HandleDelete, secured, noContent)
	huma.Post(api, "/slots/{id}/enrollment", d.Slots.HandleEnroll, secured)
	huma.Delete(api, "/slots/{id}/enrollment", d.Slots.HandleWithdraw, secured)

	huma.Post(api, "/events", d.Events.HandleSubmit, secured, created)
	huma.Patch(api, "/events/{id}", d.Events.HandleUpdate, secured)
	huma.Delete(api, "/events/{id}", d.Events.HandleDelete, secured, noContent)
	huma.Post(api, "/events/{id}/approve", d.Events.HandleApprove, secured)
	huma.Post(api, "/events/{id}/reject", d.Events.HandleReject, secured)
	huma.Get(api, "/events/{id}/registrations", d.Registrations.HandleList, secured)
	huma.Delete(api, "/events/{id}/registrations/{email}", d.Registrations.HandleCancel, secured, noContent)

	// Admin routes
	huma.Get(api, "/admin/events", d.Events.HandleAdminList, secured)

	return api
}

func created(o *huma.Operation)   { o.DefaultStatus = http.StatusCreated }
func noContent(o *huma.Operation) { o.DefaultStatus = http.StatusNoContent }

// cors allows browser clients on other origins, including credentialed requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
