package store

import (
	"context"
	"time"
)

func (s *Store) CreateMedia(ctx context.Context, m *MediaFile) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) MediaByType(ctx context.Context, dataType string) ([]MediaFile, error) {
	var files []MediaFile
	err := s.db.WithContext(ctx).
		Where("data_type = ?", dataType).
		Order("timestamp DESC").
		Find(&files).Error
	return files, err
}

func (s *Store) MediaByTimespan(ctx context.Context, start, end time.Time) ([]MediaFile, error) {
	var files []MediaFile
	err := s.db.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp DESC").
		Find(&files).Error
	return files, err
}

// ExpiredMedia returns files whose deletion time has passed.
func (s *Store) ExpiredMedia(ctx context.Context, now time.Time) ([]MediaFile, error) {
	var files []MediaFile
	err := s.db.WithContext(ctx).
		Where("deletion_time <= ?", now).
		Find(&files).Error
	return files, err
}

func (s *Store) DeleteMedia(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&MediaFile{}, id).Error
}
