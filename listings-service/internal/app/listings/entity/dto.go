package entity

// AddReviewRequest - запрос на добавление отзыва
type AddReviewRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Text     string `json:"text" validate:"max=1000"`
	UserName string `json:"user_name" validate:"max=100"`
}

// ListingListResponse - ответ со списком заведений
type ListingListResponse struct {
	Listings []Listing `json:"listings"`
	Total    int       `json:"total"`
}

// ReviewListResponse - ответ со списком отзывов
type ReviewListResponse struct {
	Reviews []Review `json:"reviews"`
	Total   int      `json:"total"`
}

// PhotoResponse - ответ после загрузки фото заведения
type PhotoResponse struct {
	ListingID string `json:"listing_id"`
	URL       string `json:"url"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
