package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so that logs remain queryable in aggregation.
const (
	// Request tracking
	KeyRequestID = "request_id" // HTTP/API request identifier
	KeyClientIP  = "client_ip"  // Client IP address

	// Archive objects
	KeyResource = "resource" // Resource UUID
	KeyFilename = "filename" // Original file name of the object
	KeyChecksum = "checksum" // SHA-1 hex digest
	KeyLocator  = "locator"  // Adapter-private locator string
	KeyLevels   = "levels"   // Durability level names
	KeyLevel    = "level"    // Single durability level name
	KeyPath     = "path"     // Filesystem path (staging, retrieval)

	// Adapters
	KeyAdapter     = "adapter"      // Adapter identifier
	KeyAdapterType = "adapter_type" // Adapter type (local, s3, drive, ...)
	KeyBucket      = "bucket"       // S3 bucket name
	KeyRegion      = "region"       // Cloud region
	KeyFolder      = "folder"       // Drive folder ID

	// Operation metadata
	KeyOperation  = "operation"   // Operation name (store, retrieve, check, ...)
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyDeep       = "deep"        // Deep (byte-level) check indicator
	KeyRepaired   = "repaired"    // Whether a repair was performed
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// Resource returns a slog.Attr for a resource UUID.
func Resource(uuid string) slog.Attr {
	return slog.String(KeyResource, uuid)
}

// Filename returns a slog.Attr for an object's file name.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Checksum returns a slog.Attr for a SHA-1 hex digest.
func Checksum(sum string) slog.Attr {
	return slog.String(KeyChecksum, sum)
}

// Locator returns a slog.Attr for an adapter-private locator.
func Locator(loc string) slog.Attr {
	return slog.String(KeyLocator, loc)
}

// Adapter returns a slog.Attr for an adapter identifier.
func Adapter(id string) slog.Attr {
	return slog.String(KeyAdapter, id)
}

// AdapterType returns a slog.Attr for an adapter type.
func AdapterType(t string) slog.Attr {
	return slog.String(KeyAdapterType, t)
}

// LevelName returns a slog.Attr for a durability level name.
func LevelName(name string) slog.Attr {
	return slog.String(KeyLevel, name)
}

// Levels returns a slog.Attr for a list of durability level names.
func Levels(names []string) slog.Attr {
	return slog.Any(KeyLevels, names)
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Operation returns a slog.Attr for an operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Deep returns a slog.Attr marking a byte-level check.
func Deep(deep bool) slog.Attr {
	return slog.Bool(KeyDeep, deep)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
