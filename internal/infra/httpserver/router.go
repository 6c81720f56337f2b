package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	appanalysis "github.com/aydenden/companylens/internal/application/analysis"
	domai "github.com/aydenden/companylens/internal/domain/ai"
	domanalysis "github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
	"github.com/aydenden/companylens/internal/infra/channel"
	"github.com/aydenden/companylens/internal/middleware"
)

type Router struct {
	svc       *appanalysis.Service
	companies company.Repository
	images    company.ImageStore
}

func NewRouter(svc *appanalysis.Service, companies company.Repository, images company.ImageStore, hub *channel.Hub, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{svc: svc, companies: companies, images: images}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		// observers are extension pages; the service binds loopback only
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	uploads := middleware.NewUploadLimiter(20, 5)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/companies", r.wrap(r.handleCreateCompany))
		rt.Get("/companies", r.wrap(r.handleListCompanies))
		rt.Get("/companies/{id}", r.wrap(r.handleGetCompany))
		rt.With(uploads.Middleware).Post("/companies/{id}/images", r.wrap(r.handleUploadImage))
		rt.Get("/companies/{id}/images", r.wrap(r.handleListImages))
		rt.Get("/companies/{id}/analysis", r.wrap(r.handleLatestAnalysis))

		rt.Post("/analysis/start", r.wrap(r.handleStart))
		rt.Post("/analysis/cancel", r.wrap(r.handleCancel))
		rt.Get("/analysis/status", r.wrap(r.handleStatus))
		rt.Get("/analysis/events", hub.ServeHTTP)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errNotFound marks lookups that came back empty; errBadRequest marks
// requests rejected by input validation.
var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows), errors.Is(err, errNotFound), errors.Is(err, company.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domanalysis.ErrSessionActive):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, domanalysis.ErrNoSession):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, domanalysis.ErrNoImages), errors.Is(err, errBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/companies
func (r *Router) handleCreateCompany(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Site     string `json:"site"`
		Metadata any    `json:"metadata"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateCompanyName(body.Name); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.ID == "" {
		body.ID = uuid.New().String()
	}

	c := &company.Company{
		ID:        company.CompanyID(body.ID),
		Name:      body.Name,
		Site:      body.Site,
		ScrapedAt: time.Now(),
		Metadata:  body.Metadata,
	}
	if err := r.companies.SaveCompany(req.Context(), c); err != nil {
		return err
	}
	return writeJSON(w, c)
}

// GET /v1/companies?limit=
func (r *Router) handleListCompanies(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.companies.ListCompanies(req.Context(), limit)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// GET /v1/companies/{id}
func (r *Router) handleGetCompany(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	c, err := r.companies.GetCompany(req.Context(), company.CompanyID(id))
	if err != nil {
		return err
	}
	if c == nil {
		return errNotFound
	}
	return writeJSON(w, c)
}

// POST /v1/companies/{id}/images
// Body: {"kind": "job_posting|review|financial", "content_type": "...", "data": "<base64>"}
func (r *Router) handleUploadImage(w http.ResponseWriter, req *http.Request) error {
	companyID := chi.URLParam(req, "id")

	var body struct {
		Kind        string `json:"kind"`
		ContentType string `json:"content_type"`
		Data        string `json:"data"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateSourceKind(body.Kind); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	data, err := middleware.ValidateImagePayload(body.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	c, err := r.companies.GetCompany(req.Context(), company.CompanyID(companyID))
	if err != nil {
		return err
	}
	if c == nil {
		return errNotFound
	}

	img := &company.CapturedImage{
		ID:          uuid.New().String(),
		CompanyID:   c.ID,
		Kind:        company.SourceKind(body.Kind),
		ContentType: body.ContentType,
		Size:        int64(len(data)),
		CapturedAt:  time.Now(),
	}
	img.ObjectKey = fmt.Sprintf("%s/%s/%s", companyID, body.Kind, img.ID)

	if err := r.images.Put(req.Context(), img.ObjectKey, data, body.ContentType); err != nil {
		return err
	}
	if err := r.companies.SaveImage(req.Context(), img); err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	return writeJSON(w, img)
}

// GET /v1/companies/{id}/images
func (r *Router) handleListImages(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	list, err := r.companies.ListImagesByCompany(req.Context(), company.CompanyID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// GET /v1/companies/{id}/analysis
func (r *Router) handleLatestAnalysis(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	rec, err := r.companies.LatestAnalysis(req.Context(), company.CompanyID(id))
	if err != nil {
		return err
	}
	if rec == nil {
		return errNotFound
	}
	return writeJSON(w, struct {
		ID        string          `json:"id"`
		CompanyID string          `json:"company_id"`
		Result    json.RawMessage `json:"result"`
		CreatedAt time.Time       `json:"created_at"`
	}{rec.ID, string(rec.CompanyID), json.RawMessage(rec.Result), rec.CreatedAt})
}

// POST /v1/analysis/start
// Body: {"company_id": "<id>", "image_ids": [...]}
func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		CompanyID string   `json:"company_id"`
		ImageIDs  []string `json:"image_ids"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.CompanyID == "" {
		return fmt.Errorf("%w: company_id is required", errBadRequest)
	}

	id, err := r.svc.Start(req.Context(), body.CompanyID, body.ImageIDs)
	if err != nil {
		return err
	}
	middleware.IncrementSessions()
	return writeJSON(w, map[string]any{"session_id": id, "status": domanalysis.StatusRunning})
}

// POST /v1/analysis/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Cancel(req.Context()); err != nil {
		return err
	}
	middleware.IncrementSessionsCancelled()
	return writeJSON(w, map[string]any{"cancelled": true})
}

// GET /v1/analysis/status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.svc.Status(req.Context())
	if err != nil {
		return err
	}
	if sess == nil {
		return writeJSON(w, map[string]any{"status": domanalysis.StatusIdle})
	}
	return writeJSON(w, sess)
}
