package handler

import (
	"fmt"
	"io"
	"net/http"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/service"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ListingHandler struct {
	queries   service.ListingQueryService
	reviews   service.ReviewService
	photos    service.PhotoService
	validator *validator.Validate
}

func NewListingHandler(queries service.ListingQueryService, reviews service.ReviewService, photos service.PhotoService) *ListingHandler {
	return &ListingHandler{
		queries:   queries,
		reviews:   reviews,
		photos:    photos,
		validator: validator.New(),
	}
}

// parseFilter читает category, city, price и sort из query string.
// price принимается как "$$" или "2".
func parseFilter(c *gin.Context) (entity.FilterSpec, error) {
	price, ok := entity.ParsePriceTier(c.Query("price"))
	if !ok {
		return entity.FilterSpec{}, fmt.Errorf("%w: price %q", service.ErrInvalidFilter, c.Query("price"))
	}
	return entity.FilterSpec{
		Category: c.Query("category"),
		City:     c.Query("city"),
		Price:    price,
		Sort:     c.Query("sort"),
	}, nil
}

func (h *ListingHandler) GetListings(c *gin.Context) {
	spec, err := parseFilter(c)
	if err != nil {
		respondError(c, err, "")
		return
	}

	listings, err := h.queries.FetchListings(c.Request.Context(), spec)
	if err != nil {
		respondError(c, err, "Failed to get listings")
		return
	}

	c.JSON(http.StatusOK, entity.ListingListResponse{
		Listings: listings,
		Total:    len(listings),
	})
}

func (h *ListingHandler) GetListing(c *gin.Context) {
	listing, err := h.queries.FetchListingByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get listing")
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) GetReviews(c *gin.Context) {
	reviews, err := h.queries.FetchReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{
		Reviews: reviews,
		Total:   len(reviews),
	})
}

// AddReview - POST /listings/:id/reviews, автор берется из JWT
func (h *ListingHandler) AddReview(c *gin.Context) {
	var req entity.AddReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	review, err := h.reviews.AddReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to add review")
		return
	}

	c.JSON(http.StatusCreated, review)
}

// UploadPhoto - PUT /listings/:id/photo, multipart поле file.
// Тип содержимого определяется по байтам, заголовок клиента не учитывается.
func (h *ListingHandler) UploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "File is required"})
		return
	}
	if fileHeader.Size > service.MaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, entity.ErrorResponse{Error: "File is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Failed to read file"})
		return
	}

	contentType := mimetype.Detect(data).String()
	listingID := c.Param("id")

	url, err := h.photos.UpdateListingImage(c.Request.Context(), listingID, fileHeader.Filename, contentType, data)
	if err != nil {
		respondError(c, err, "Failed to upload photo")
		return
	}

	c.JSON(http.StatusOK, entity.PhotoResponse{ListingID: listingID, URL: url})
}
