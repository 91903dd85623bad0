package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// SetObjectSchema stores or replaces the metadata schema for a resource.
func (s *Store) SetObjectSchema(ctx context.Context, objectUUID, schemaJSON string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ObjectSchema
		err := tx.Where("object_uuid = ?", objectUUID).First(&existing).Error
		switch {
		case err == nil:
			return tx.Model(&ObjectSchema{}).
				Where("object_uuid = ?", objectUUID).
				Update("schema_json", schemaJSON).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&ObjectSchema{ObjectUUID: objectUUID, SchemaJSON: schemaJSON}).Error
		default:
			return err
		}
	})
}

// GetObjectSchema retrieves the metadata schema for a resource.
func (s *Store) GetObjectSchema(ctx context.Context, objectUUID string) (*ObjectSchema, error) {
	var schema ObjectSchema
	if err := s.db.WithContext(ctx).Where("object_uuid = ?", objectUUID).First(&schema).Error; err != nil {
		return nil, convertNotFoundError(err, ErrSchemaNotFound)
	}
	return &schema, nil
}

// SetObjectMetadata writes one user metadata key for a resource, replacing any
// previous value for that key.
func (s *Store) SetObjectMetadata(ctx context.Context, objectUUID, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ObjectMetadata{}).
			Where("object_uuid = ? AND key = ?", objectUUID, key).
			Update("value", value)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&ObjectMetadata{ObjectUUID: objectUUID, Key: key, Value: value}).Error
	})
}

// GetObjectMetadata returns all user metadata attached to a resource.
func (s *Store) GetObjectMetadata(ctx context.Context, objectUUID string) ([]*ObjectMetadata, error) {
	var entries []*ObjectMetadata
	err := s.db.WithContext(ctx).
		Where("object_uuid = ?", objectUUID).
		Order("key").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteObjectMetadata removes the schema and all metadata entries of a
// resource. Used when the resource itself is deleted.
func (s *Store) DeleteObjectMetadata(ctx context.Context, objectUUID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("object_uuid = ?", objectUUID).Delete(&ObjectMetadata{}).Error; err != nil {
			return err
		}
		return tx.Where("object_uuid = ?", objectUUID).Delete(&ObjectSchema{}).Error
	})
}
