package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"group_chat/internal/storage"
)

// ErrNotFound 表示目標行不存在，或當前請求者無權操作它
var ErrNotFound = errors.New("record not found")

// ErrPinCleared 表示置頂目標不在群組內，但群組原有的置頂已被清除。它同時滿足 errors.Is(err, ErrNotFound)。
var ErrPinCleared = fmt.Errorf("%w: existing pin cleared", ErrNotFound)

type BaseRepository interface {
	Create(ctx context.Context, model interface{}) error
}

type baseRepository struct {
	db *storage.Database
}

func NewBaseRepository(db *storage.Database) BaseRepository {
	return &baseRepository{db: db}
}

func (r *baseRepository) Create(ctx context.Context, model interface{}) error {
	return r.db.WithContext(ctx).Create(model).Error
}

// findByID 在給定的會話(可以是事務)中按主鍵查找，並把 gorm 的未找到錯誤轉為 ErrNotFound
func findByID(tx *gorm.DB, id uint, model interface{}) error {
	err := tx.First(model, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
