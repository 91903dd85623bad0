package catalog

import (
	"context"

	"gorm.io/gorm"
)

// AddLevel registers a new durability level.
func (s *Store) AddLevel(ctx context.Context, l *Level) error {
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateLevel
		}
		return err
	}
	return nil
}

// GetLevel retrieves a level by name.
func (s *Store) GetLevel(ctx context.Context, name string) (*Level, error) {
	var l Level
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&l).Error; err != nil {
		return nil, convertNotFoundError(err, ErrLevelNotFound)
	}
	return &l, nil
}

// ListLevels returns every registered level.
func (s *Store) ListLevels(ctx context.Context) ([]*Level, error) {
	var levels []*Level
	if err := s.db.WithContext(ctx).Order("id").Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// DeleteLevel removes a level and strips its name from every resource that
// referenced it, so no resource is left pointing at a level that no longer
// exists. Both happen in one transaction.
func (s *Store) DeleteLevel(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("name = ?", name).Delete(&Level{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLevelNotFound
		}

		var resources []*Resource
		if err := tx.Find(&resources).Error; err != nil {
			return err
		}
		for _, r := range resources {
			names := r.LevelNames()
			kept := names[:0]
			for _, n := range names {
				if n != name {
					kept = append(kept, n)
				}
			}
			if len(kept) == len(names) {
				continue
			}
			r.SetLevelNames(kept)
			if err := tx.Model(&Resource{}).Where("id = ?", r.ID).Update("levels", r.Levels).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
