package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldClientID is the structured log field key for a client identifier.
	FieldClientID = "client_id"
	// FieldClientName is the structured log field key for a client name.
	FieldClientName = "client_name"
	// FieldListingID is the structured log field key for a listing identifier.
	FieldListingID = "listing_id"
	// FieldListingSource is the structured log field key for the portal a listing came from.
	FieldListingSource = "listing_source"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ClientFields returns the fields identifying a client. Empty values are ignored.
func ClientFields(id, name string) []zap.Field {
	return StringFields(
		StringField{Key: FieldClientID, Value: id},
		StringField{Key: FieldClientName, Value: name},
	)
}

// ListingFields returns the fields identifying a listing. Empty values are ignored.
func ListingFields(id, source string) []zap.Field {
	return StringFields(
		StringField{Key: FieldListingID, Value: id},
		StringField{Key: FieldListingSource, Value: source},
	)
}

// WithClient attaches the client fields to the provided logger.
func WithClient(logger *zap.Logger, id, name string) *zap.Logger {
	return WithFields(logger, ClientFields(id, name)...)
}
