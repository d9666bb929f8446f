package catalog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-clinic/lumina-clinic/internal/platform/httpx"
	"github.com/lumina-clinic/lumina-clinic/internal/shared"
)

// autoLoadPassword lets the storefront fetch the catalog without the admin
// secret. The admin view sends the real password instead.
const autoLoadPassword = "auto-load"

// badPasswordDelay slows down password guessing on the products endpoint.
const badPasswordDelay = time.Second

// Handler serves the storefront catalog endpoints.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	adminPassword string
	validate      *validator.Validate

	sleep func(time.Duration)
}

// NewHandler constructs the catalog HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, adminPassword string) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		adminPassword: adminPassword,
		validate:      validator.New(),
		sleep:         time.Sleep,
	}
}

// MountRoutes attaches the catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products", h.listProducts)
	r.Get("/product/{id}", h.getProduct)
}

type listProductsRequest struct {
	Password string `json:"password" validate:"required"`
}

type listProductsResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Count    int       `json:"count"`
	Source   string    `json:"source"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var req listProductsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "password is required")
		return
	}
	if req.Password != autoLoadPassword && !shared.SecretMatches(h.adminPassword, req.Password) {
		h.sleep(badPasswordDelay)
		httpx.Error(w, http.StatusUnauthorized, "invalid password")
		return
	}

	products, err := h.service.ListActiveProducts(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	if products == nil {
		products = []Product{}
	}

	httpx.JSON(w, http.StatusOK, listProductsResponse{
		Success:  true,
		Products: products,
		Count:    len(products),
		Source:   "database",
	})
}

type getProductResponse struct {
	Success bool     `json:"success"`
	Product *Product `json:"product"`
	Source  string   `json:"source"`
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		if err == ErrNotFound {
			httpx.Error(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("get product", slog.Any("error", err), slog.String("id", id))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.JSON(w, http.StatusOK, getProductResponse{
		Success: true,
		Product: product,
		Source:  "database",
	})
}
