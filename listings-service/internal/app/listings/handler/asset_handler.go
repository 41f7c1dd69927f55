package handler

import (
	"net/http"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/infrastructure/assets"

	"github.com/gin-gonic/gin"
)

// AssetReader - хранилище, умеющее отдать файл по ключу (in-memory режим)
type AssetReader interface {
	Get(key string) (assets.Object, bool)
}

// AssetHandler раздает фото, когда они хранятся в памяти процесса.
// В режиме GCS ссылки ведут прямо в бакет и маршрут не регистрируется.
type AssetHandler struct {
	reader AssetReader
}

func NewAssetHandler(reader AssetReader) *AssetHandler {
	return &AssetHandler{reader: reader}
}

func (h *AssetHandler) GetAsset(c *gin.Context) {
	obj, ok := h.reader.Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Asset not found"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
