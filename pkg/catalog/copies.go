package catalog

import (
	"context"

	"gorm.io/gorm"
)

// AddCopy records a physical copy. It enforces the copy invariants inside a
// transaction: the resource must exist, a resource has at most one canonical
// copy, and an adapter holds at most one non-canonical copy per resource.
func (s *Store) AddCopy(ctx context.Context, c *Copy) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Resource{}).Where("uuid = ?", c.ResourceUUID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrCopyWithoutResource
		}

		if c.Canonical {
			if err := tx.Model(&Copy{}).
				Where("resource_uuid = ? AND canonical = ?", c.ResourceUUID, true).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateCanonical
			}
		} else {
			if err := tx.Model(&Copy{}).
				Where("resource_uuid = ? AND adapter_id = ? AND canonical = ?", c.ResourceUUID, c.AdapterID, false).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateCopy
			}
		}

		return tx.Create(c).Error
	})
}

// GetCopy retrieves the non-canonical copy held by the given adapter.
func (s *Store) GetCopy(ctx context.Context, resourceUUID, adapterID string) (*Copy, error) {
	var c Copy
	err := s.db.WithContext(ctx).
		Where("resource_uuid = ? AND adapter_id = ? AND canonical = ?", resourceUUID, adapterID, false).
		First(&c).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrCopyNotFound)
	}
	return &c, nil
}

// GetCanonicalCopy retrieves the canonical copy row of a resource.
func (s *Store) GetCanonicalCopy(ctx context.Context, resourceUUID string) (*Copy, error) {
	var c Copy
	err := s.db.WithContext(ctx).
		Where("resource_uuid = ? AND canonical = ?", resourceUUID, true).
		First(&c).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrCopyNotFound)
	}
	return &c, nil
}

// ListCopies returns every copy row for a resource, canonical included.
func (s *Store) ListCopies(ctx context.Context, resourceUUID string) ([]*Copy, error) {
	var copies []*Copy
	err := s.db.WithContext(ctx).
		Where("resource_uuid = ?", resourceUUID).
		Order("copy_id").
		Find(&copies).Error
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// DeleteCopy removes a copy row by surrogate id. Deleting an already-deleted
// copy is a silent success so that multi-level fan-out deletion stays
// idempotent.
func (s *Store) DeleteCopy(ctx context.Context, copyID uint) error {
	return s.db.WithContext(ctx).Where("copy_id = ?", copyID).Delete(&Copy{}).Error
}

// UpdateCopyChecksum rewrites the recorded checksum and locator of a copy,
// used when a backend overwrites bytes in place during repair.
func (s *Store) UpdateCopyChecksum(ctx context.Context, copyID uint, checksum, locator string) error {
	result := s.db.WithContext(ctx).
		Model(&Copy{}).
		Where("copy_id = ?", copyID).
		Updates(map[string]any{"checksum": checksum, "locator": locator})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCopyNotFound
	}
	return nil
}
