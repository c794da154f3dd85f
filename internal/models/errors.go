package models

import "errors"

// Common validation and persistence errors for models.
var (
	// ErrFilenameRequired indicates a required filename field is empty.
	ErrFilenameRequired = errors.New("filename is required")

	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidDataset indicates an unknown dataset tag.
	ErrInvalidDataset = errors.New("invalid dataset: must be 'trump', 'tweede_kamer' or 'video_library'")

	// ErrInvalidSourceType indicates an unknown source type.
	ErrInvalidSourceType = errors.New("invalid source type: must be 'html', 'xml' or 'video_file'")

	// ErrInvalidSegmentType indicates an unknown segment type.
	ErrInvalidSegmentType = errors.New("invalid segment type: must be 'spoken' or 'announcement'")

	// ErrVideoIDRequired indicates a required video ID field is zero.
	ErrVideoIDRequired = errors.New("video_id is required")

	// ErrSegmentIDRequired indicates a required segment identifier is empty.
	ErrSegmentIDRequired = errors.New("segment_id is required")

	// ErrConflictOnUniqueKey indicates a unique constraint violation.
	// Callers recover by re-reading the existing row.
	ErrConflictOnUniqueKey = errors.New("conflict on unique key")
)
