package entity

import "strings"

// Значения сортировки в FilterSpec
const (
	SortByRating = "Rating" // avgRating desc, по умолчанию
	SortByReview = "Review" // numRatings desc
)

// FilterSpec - разреженный набор фильтров списка заведений
// Пустое поле означает отсутствие фильтра
type FilterSpec struct {
	Category string
	City     string
	Price    int // 0 - не задано
	Sort     string
}

// ParsePriceTier переводит цену из формы "$$" или "2" в порядковый номер
// Пустая строка - фильтр не задан, возвращает 0
func ParsePriceTier(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	if strings.Trim(raw, "$") == "" {
		return len(raw), true
	}
	if len(raw) == 1 && raw[0] >= '0' && raw[0] <= '9' {
		return int(raw[0] - '0'), true
	}
	return 0, false
}
