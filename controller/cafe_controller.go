package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"coffeewifi/cache"
	"coffeewifi/model"
	"coffeewifi/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	idNotFoundMessage       = "Sorry a Cafe with that id was not found in the database"
	locationNotFoundMessage = "Sorry, we don't have a cafe at that location"
	emptyMessage            = "Sorry, there are no cafes in the database yet"
	duplicateMessage        = "Sorry, a cafe with that name already exists"
)

// CafeStore is the storage the handlers need.
type CafeStore interface {
	Ping(ctx context.Context) error
	Random(ctx context.Context) (model.Cafe, error)
	All(ctx context.Context) ([]model.Cafe, error)
	FindByLocation(ctx context.Context, location string) (model.Cafe, error)
	Create(ctx context.Context, cafe *model.Cafe) error
	CreateMany(ctx context.Context, cafes []model.Cafe) (imported, skipped int, err error)
	UpdatePrice(ctx context.Context, id uint, price *string) error
	Delete(ctx context.Context, id uint) error
}

type CafeController struct {
	store CafeStore
	cache *cache.CafeCache
	log   *zap.Logger
}

// NewCafeController wires the handlers. cache may be nil.
func NewCafeController(store CafeStore, cafeCache *cache.CafeCache, log *zap.Logger) *CafeController {
	return &CafeController{store: store, cache: cafeCache, log: log}
}

func (ctl *CafeController) Health(c *gin.Context) {
	if err := ctl.store.Ping(c.Request.Context()); err != nil {
		ctl.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (ctl *CafeController) GetRandomCafe(c *gin.Context) {
	cafe, err := ctl.store.Random(c.Request.Context())
	if errors.Is(err, repository.ErrEmpty) {
		notFound(c, emptyMessage)
		return
	}
	if err != nil {
		ctl.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cafe": cafe})
}

func (ctl *CafeController) GetAllCafes(c *gin.Context) {
	ctx := c.Request.Context()

	cafes, hit, err := ctl.cache.All(ctx)
	if err != nil {
		ctl.log.Warn("cafe cache read failed", zap.Error(err))
	}
	if !hit {
		cafes, err = ctl.store.All(ctx)
		if err != nil {
			ctl.internalError(c, err)
			return
		}
		if err := ctl.cache.SetAll(ctx, cafes); err != nil {
			ctl.log.Warn("cafe cache write failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"cafes": cafes})
}

func (ctl *CafeController) SearchCafe(c *gin.Context) {
	cafe, err := ctl.store.FindByLocation(c.Request.Context(), c.Query("loc"))
	if errors.Is(err, repository.ErrNotFound) {
		notFound(c, locationNotFoundMessage)
		return
	}
	if err != nil {
		ctl.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cafe": cafe})
}

func (ctl *CafeController) AddCafe(c *gin.Context) {
	var req model.AddCafeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": err.Error()}})
		return
	}

	cafe := req.ToCafe()
	if err := ctl.store.Create(c.Request.Context(), &cafe); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"Conflict": duplicateMessage}})
			return
		}
		ctl.internalError(c, err)
		return
	}
	ctl.invalidate(c)
	ctl.log.Info("cafe added", zap.Uint("id", cafe.ID), zap.String("name", cafe.Name))

	c.JSON(http.StatusOK, gin.H{"response": gin.H{"Success": "Successfully added the new cafe."}})
}

func (ctl *CafeController) UpdatePrice(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		notFound(c, idNotFoundMessage)
		return
	}

	var price *string
	if v, present := c.GetQuery("new_price"); present {
		price = &v
	}

	if err := ctl.store.UpdatePrice(c.Request.Context(), id, price); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(c, idNotFoundMessage)
			return
		}
		ctl.internalError(c, err)
		return
	}
	ctl.invalidate(c)

	c.JSON(http.StatusOK, gin.H{"success": "Successfully updated the price."})
}

// ReportClosed deletes a cafe. The api-key is checked by middleware first.
func (ctl *CafeController) ReportClosed(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		notFound(c, idNotFoundMessage)
		return
	}

	if err := ctl.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(c, idNotFoundMessage)
			return
		}
		ctl.internalError(c, err)
		return
	}
	ctl.invalidate(c)
	ctl.log.Info("cafe deleted", zap.Uint("id", id))

	c.JSON(http.StatusOK, gin.H{"success": "Successfully deleted the cafe."})
}

func (ctl *CafeController) invalidate(c *gin.Context) {
	if err := ctl.cache.Invalidate(c.Request.Context()); err != nil {
		ctl.log.Warn("cafe cache invalidation failed", zap.Error(err))
	}
}

func (ctl *CafeController) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	ctl.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"Internal Server Error": "Something went wrong, please try again later"}})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"Not Found": msg}})
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
