package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/service"
)

// productFilter reads the listing query: category (id or slug), search, minPrice, maxPrice,
// inStock, featured, sort, page, limit
func productFilter(c *gin.Context, svc *service.Services) (repository.ProductFilter, int, error) {
	page, limit, offset := pageParams(c)
	filter := repository.ProductFilter{
		Search:       c.Query("search"),
		InStockOnly:  c.Query("inStock") == "true",
		FeaturedOnly: c.Query("featured") == "true",
		Sort:         c.Query("sort"),
		Limit:        limit,
		Offset:       offset,
	}
	if v, err := strconv.ParseFloat(c.Query("minPrice"), 64); err == nil {
		filter.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("maxPrice"), 64); err == nil {
		filter.MaxPrice = &v
	}
	if category := c.Query("category"); category != "" {
		found, err := svc.Catalog.GetCategory(c.Request.Context(), category)
		if err != nil {
			return filter, page, err
		}
		filter.CategoryID = &found.ID
	}
	return filter, page, nil
}

// HandleListProducts handles GET /api/products
func HandleListProducts(svc *service.Services, logger *zap.Logger, includeInactive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, page, err := productFilter(c, svc)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		filter.IncludeInactive = includeInactive

		products, total, err := svc.Catalog.ListProducts(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if filter.Search != "" {
			svc.Effects.Run(svc.Analytics.TrackEffect(domain.AnalyticsSearch, optionalUserID(c), nil,
				map[string]interface{}{"query": filter.Search, "results": total}))
		}
		respondPage(c, "products", products, total, page, filter.Limit)
	}
}

// HandleGetProduct handles GET /api/products/:id
func HandleGetProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		includeInactive := false
		if user := currentUser(c); user != nil {
			includeInactive = user.IsAdmin()
		}
		product, err := svc.Catalog.GetProduct(c.Request.Context(), id, includeInactive)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		svc.Effects.Run(svc.Analytics.TrackEffect(domain.AnalyticsProductView, optionalUserID(c), &product.ID, nil))
		respond(c, http.StatusOK, gin.H{"product": product})
	}
}

// HandleCreateProduct handles POST /api/products (admin)
func HandleCreateProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ProductRequest
		if !bindJSON(c, &req) {
			return
		}

		product, err := svc.Catalog.CreateProduct(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Product created successfully", gin.H{"product": product})
	}
}

// HandleUpdateProduct handles PUT /api/products/:id (admin)
func HandleUpdateProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.ProductPatchRequest
		if !bindJSON(c, &req) {
			return
		}

		product, err := svc.Catalog.UpdateProduct(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Product updated successfully", gin.H{"product": product})
	}
}

// HandleDeleteProduct handles DELETE /api/products/:id (admin). The product is deactivated, not removed.
func HandleDeleteProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		if err := svc.Catalog.DeactivateProduct(c.Request.Context(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Product deleted successfully", nil)
	}
}

// HandleAdjustStock handles PATCH /api/products/:id/stock (admin)
func HandleAdjustStock(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.StockAdjustRequest
		if !bindJSON(c, &req) {
			return
		}

		product, err := svc.Catalog.AdjustStock(c.Request.Context(), id, req.Delta)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"product": product})
	}
}

// HandleListCategories handles GET /api/categories. Admins may pass all=true to see inactive ones.
func HandleListCategories(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := false
		if user := currentUser(c); user != nil && user.IsAdmin() {
			includeInactive = c.Query("all") == "true"
		}

		categories, err := svc.Catalog.ListCategories(c.Request.Context(), includeInactive)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"categories": categories})
	}
}

// HandleGetCategory handles GET /api/categories/:id where id may also be a slug
func HandleGetCategory(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		category, err := svc.Catalog.GetCategory(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"category": category})
	}
}

// HandleCreateCategory handles POST /api/categories (admin)
func HandleCreateCategory(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CategoryRequest
		if !bindJSON(c, &req) {
			return
		}

		category, err := svc.Catalog.CreateCategory(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Category created successfully", gin.H{"category": category})
	}
}

// HandleUpdateCategory handles PUT /api/categories/:id (admin)
func HandleUpdateCategory(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.CategoryRequest
		if !bindJSON(c, &req) {
			return
		}

		category, err := svc.Catalog.UpdateCategory(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Category updated successfully", gin.H{"category": category})
	}
}

// HandleDeleteCategory handles DELETE /api/categories/:id (admin)
func HandleDeleteCategory(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		if err := svc.Catalog.DeleteCategory(c.Request.Context(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Category deleted successfully", nil)
	}
}

// HandleProductReviews handles GET /api/products/:id/reviews
func HandleProductReviews(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		page, limit, offset := pageParams(c)

		reviews, total, err := svc.Reviews.ListByProduct(c.Request.Context(), id, limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondPage(c, "reviews", reviews, total, page, limit)
	}
}
