package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"coffeewifi/model"

	"gorm.io/gorm"
)

// CafeRepository reads and writes the cafes table.
type CafeRepository struct {
	db   *gorm.DB
	intn func(n int) int
}

func NewCafeRepository(db *gorm.DB) *CafeRepository {
	return &CafeRepository{db: db, intn: rand.Intn}
}

// Ping checks the database connection.
func (r *CafeRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Random returns one cafe chosen uniformly, or ErrEmpty.
func (r *CafeRepository) Random(ctx context.Context) (model.Cafe, error) {
	var cafe model.Cafe
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Cafe{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count cafes: %w", err)
		}
		if count == 0 {
			return ErrEmpty
		}
		offset := r.intn(int(count))
		if err := tx.Order("id").Offset(offset).Take(&cafe).Error; err != nil {
			return fmt.Errorf("pick cafe: %w", err)
		}
		return nil
	})
	return cafe, err
}

// All returns every cafe in insertion order.
func (r *CafeRepository) All(ctx context.Context) ([]model.Cafe, error) {
	cafes := make([]model.Cafe, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&cafes).Error; err != nil {
		return nil, fmt.Errorf("list cafes: %w", err)
	}
	return cafes, nil
}

// FindByLocation returns the lowest-id cafe whose location matches exactly.
func (r *CafeRepository) FindByLocation(ctx context.Context, location string) (model.Cafe, error) {
	var cafe model.Cafe
	if location == "" {
		return cafe, ErrNotFound
	}
	err := r.db.WithContext(ctx).Where("location = ?", location).Order("id").First(&cafe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cafe, ErrNotFound
	}
	if err != nil {
		return cafe, fmt.Errorf("search cafes: %w", err)
	}
	return cafe, nil
}

// Create inserts cafe and sets its ID. A taken name yields ErrDuplicateName.
func (r *CafeRepository) Create(ctx context.Context, cafe *model.Cafe) error {
	cafe.ID = 0
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Cafe{}).Where("name = ?", cafe.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("check name: %w", err)
		}
		if count > 0 {
			return ErrDuplicateName
		}
		if err := tx.Create(cafe).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("insert cafe: %w", err)
		}
		return nil
	})
}

// CreateMany inserts the cafes whose names are not already taken, in one
// transaction. It reports how many rows were inserted and how many skipped.
func (r *CafeRepository) CreateMany(ctx context.Context, cafes []model.Cafe) (imported, skipped int, err error) {
	if len(cafes) == 0 {
		return 0, 0, nil
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(cafes))
		for _, c := range cafes {
			names = append(names, c.Name)
		}
		var existing []string
		if err := tx.Model(&model.Cafe{}).Where("name IN ?", names).Pluck("name", &existing).Error; err != nil {
			return fmt.Errorf("check names: %w", err)
		}
		seen := make(map[string]bool, len(existing)+len(cafes))
		for _, name := range existing {
			seen[name] = true
		}

		batch := make([]model.Cafe, 0, len(cafes))
		for _, c := range cafes {
			if seen[c.Name] {
				skipped++
				continue
			}
			seen[c.Name] = true
			c.ID = 0
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(batch, 100).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("insert cafes: %w", err)
		}
		imported = len(batch)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return imported, skipped, nil
}

// UpdatePrice overwrites coffee_price only. A nil price stores NULL.
func (r *CafeRepository) UpdatePrice(ctx context.Context, id uint, price *string) error {
	var value any
	if price != nil {
		value = *price
	}
	res := r.db.WithContext(ctx).Model(&model.Cafe{}).Where("id = ?", id).Update("coffee_price", value)
	if res.Error != nil {
		return fmt.Errorf("update price: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the cafe with id.
func (r *CafeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Cafe{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete cafe: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
