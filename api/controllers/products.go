package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercato-labs/mercato-backend/api/middleware"
	"github.com/mercato-labs/mercato-backend/api/responses"
	"github.com/mercato-labs/mercato-backend/api/validators"
	product "github.com/mercato-labs/mercato-backend/internal/products"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"github.com/mercato-labs/mercato-backend/pkg/pagination"
)

type createProductRequest struct {
	SKU           string  `json:"sku" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	ImageURL      *string `json:"image_url,omitempty" validate:"omitempty,url"`
	Price         string  `json:"price" validate:"required"`
	StockQuantity int     `json:"stock_quantity" validate:"min=0"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

type updateProductRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	ImageURL      *string `json:"image_url,omitempty" validate:"omitempty,url"`
	Price         *string `json:"price,omitempty"`
	StockQuantity *int    `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

// CreateProduct handles catalog additions by sellers and admins.
func CreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := parsePrice(body.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		isActive := true
		if body.IsActive != nil {
			isActive = *body.IsActive
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		dto, err := svc.CreateProduct(r.Context(), role, product.CreateProductInput{
			SKU:           strings.TrimSpace(body.SKU),
			Name:          strings.TrimSpace(body.Name),
			Description:   body.Description,
			Category:      body.Category,
			ImageURL:      body.ImageURL,
			Price:         price,
			StockQuantity: body.StockQuantity,
			IsActive:      isActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// UpdateProduct applies partial catalog edits.
func UpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := product.UpdateProductInput{
			Name:          body.Name,
			Description:   body.Description,
			Category:      body.Category,
			ImageURL:      body.ImageURL,
			StockQuantity: body.StockQuantity,
			IsActive:      body.IsActive,
		}
		if body.Price != nil {
			price, priceErr := parsePrice(*body.Price)
			if priceErr != nil {
				responses.WriteError(r.Context(), logg, w, priceErr)
				return
			}
			input.Price = &price
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		dto, err := svc.UpdateProduct(r.Context(), role, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

// DeactivateProduct hides a product from the catalog without deleting it.
func DeactivateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		if err := svc.DeactivateProduct(r.Context(), role, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetProduct returns a single catalog entry.
func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

// ListProducts returns a cursor page of active catalog entries.
func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := product.ListFilters{
			ActiveOnly: true,
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), 120),
		}
		if category := validators.SanitizeString(r.URL.Query().Get("category"), 64); category != "" {
			filters.Category = &category
		}

		result, err := svc.ListProducts(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	if price.IsNegative() {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return price, nil
}

func parsePathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return parsed, nil
}
