package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AddResource records a newly ingested resource. The canonical locator may
// still be pending; ingest fills it in once the canonical copy is written.
func (s *Store) AddResource(ctx context.Context, r *Resource) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateResource
		}
		return err
	}
	return nil
}

// GetResource retrieves a resource row by UUID.
func (s *Store) GetResource(ctx context.Context, uuid string) (*Resource, error) {
	var r Resource
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&r).Error; err != nil {
		return nil, convertNotFoundError(err, ErrResourceNotFound)
	}
	return &r, nil
}

// ListResources returns every resource row in the catalog.
func (s *Store) ListResources(ctx context.Context) ([]*Resource, error) {
	var resources []*Resource
	if err := s.db.WithContext(ctx).Order("id").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// DeleteResource removes a resource row. Copies are not touched here; callers
// must have removed them first.
func (s *Store) DeleteResource(ctx context.Context, uuid string) error {
	result := s.db.WithContext(ctx).Where("uuid = ?", uuid).Delete(&Resource{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// UpdateResourceLevels replaces the level assignment of a resource.
func (s *Store) UpdateResourceLevels(ctx context.Context, uuid string, levels []string) error {
	r := Resource{}
	r.SetLevelNames(levels)
	result := s.db.WithContext(ctx).
		Model(&Resource{}).
		Where("uuid = ?", uuid).
		Update("levels", r.Levels)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// UpdateResourceContent records the new checksum and canonical locator after
// an object's bytes have been replaced. The two columns change together or
// not at all.
func (s *Store) UpdateResourceContent(ctx context.Context, uuid, checksum, canonicalLocator string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Resource{}).
			Where("uuid = ?", uuid).
			Updates(map[string]any{
				"checksum":          checksum,
				"canonical_locator": canonicalLocator,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrResourceNotFound
		}
		return nil
	})
}

// TouchResourceChecked stamps the time a resource last went through an
// integrity check. Due-only sweeps use the stamp against level frequencies.
func (s *Store) TouchResourceChecked(ctx context.Context, uuid string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&Resource{}).
		Where("uuid = ?", uuid).
		Update("last_checked_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// Search returns resources whose filename, canonical locator, UUID, or
// description contains the given term.
func (s *Store) Search(ctx context.Context, term string) ([]*Resource, error) {
	var resources []*Resource
	pattern := "%" + term + "%"
	err := s.db.WithContext(ctx).
		Where("filename LIKE ? OR canonical_locator LIKE ? OR uuid LIKE ? OR description LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("id").
		Find(&resources).Error
	if err != nil {
		return nil, err
	}
	return resources, nil
}
