package memory

import (
	"strings"
	"time"

	"goodbites/listings-service/internal/app/listings/docstore"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Порядок типов при сортировке повторяет MongoDB:
// отсутствующее поле / null < числа < строки < bool < даты
const (
	rankNull = iota
	rankNumber
	rankString
	rankBool
	rankDate
	rankOther
)

func matches(id string, data map[string]interface{}, filters []docstore.Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if f.Field == docstore.IDField {
			v, ok = id, true
		}
		if !ok {
			return false
		}
		if rank(v) != rank(f.Value) || compareValues(v, f.Value) != 0 {
			return false
		}
	}
	return true
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNull
	case int, int32, int64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case bool:
		return rankBool
	case primitive.DateTime, time.Time:
		return rankDate
	default:
		return rankOther
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func toTime(v interface{}) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	}
	return time.Time{}
}

// compareValues возвращает -1, 0 или 1
func compareValues(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankDate:
		return toTime(a).Compare(toTime(b))
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
