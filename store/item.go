package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fnbox/fault"
)

func (s *Store) CreateItem(ctx context.Context, item *Item) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetItem(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.NotFound, "item %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error
	return items, err
}

func (s *Store) SaveItem(ctx context.Context, item *Item) error {
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeleteItem(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Item{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fault.New(fault.NotFound, "item %d not found", id)
	}
	return nil
}
