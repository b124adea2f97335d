package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/service"
)

const imageFormField = "image"

// upload reads the multipart image field and pushes it to the image host
func upload(c *gin.Context, svc *service.Services, maxBytes int64) (*media.Image, error) {
	header, err := c.FormFile(imageFormField)
	if err != nil {
		fail(c, http.StatusBadRequest, "an image file is required", []FieldError{{Field: imageFormField, Message: "is required"}})
		return nil, nil
	}
	if header.Size > maxBytes {
		return nil, media.ErrTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return svc.Images.Upload(c.Request.Context(), file, header.Filename)
}

// HandleUploadImage handles POST /api/admin/upload
func HandleUploadImage(svc *service.Services, maxBytes int64, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		image, err := upload(c, svc, maxBytes)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if image == nil {
			return
		}
		respondMessage(c, http.StatusCreated, "Image uploaded successfully", gin.H{"image": image})
	}
}

// HandleUploadProductImage handles POST /api/products/:id/images (admin)
func HandleUploadProductImage(svc *service.Services, maxBytes int64, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		if _, err := svc.Catalog.GetProduct(c.Request.Context(), id, true); err != nil {
			respondError(c, logger, err)
			return
		}

		image, err := upload(c, svc, maxBytes)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if image == nil {
			return
		}

		product, err := svc.Catalog.AddImage(c.Request.Context(), id, image.URL)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Image uploaded successfully", gin.H{"product": product, "image": image})
	}
}
