package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/lectern/internal/entities"
)

// GormStore keeps records as rows of the records table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore expects the records table to be migrated already.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, p string) ([]byte, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	var record entities.Record
	err := s.db.WithContext(ctx).Where("path = ?", p).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", p, err)
	}
	return record.Value, nil
}

func (s *GormStore) Put(ctx context.Context, p string, data []byte) error {
	if err := validatePath(p); err != nil {
		return err
	}
	record := entities.Record{Path: p, Value: data}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("write record %s: %w", p, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, p string) error {
	if err := validatePath(p); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("path = ?", p).Delete(&entities.Record{}).Error; err != nil {
		return fmt.Errorf("delete record %s: %w", p, err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, prefix string) ([]string, error) {
	var candidates []string
	err := s.db.WithContext(ctx).Model(&entities.Record{}).
		Where("path LIKE ?", prefix+"%").
		Order("path").
		Pluck("path", &candidates).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	// LIKE treats '_' and '%' in the prefix as wildcards.
	paths := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}
