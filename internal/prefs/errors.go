package prefs

import "codeberg.org/mutker/vehiclectl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("prefs_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("prefs_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("prefs_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("prefs_schema_migration_failed")

	// Storage Errors
	ErrStorageInit   = errors.ErrInitPrefs
	ErrStorageClose  = errors.ErrClosePrefs
	ErrStorageRead   = errors.ErrorCode("prefs_storage_read_failed")
	ErrStorageWrite  = errors.ErrorCode("prefs_storage_write_failed")
	ErrInvalidRecord = errors.ErrorCode("prefs_invalid_record")
)
