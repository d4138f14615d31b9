package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Lookup errors
	ErrUnknownRegion   = errors.New("unknown region")
	ErrUnknownViewMode = errors.New("unknown view mode")
	ErrUnknownStyle    = errors.New("unknown map style")
	ErrInvalidColor    = errors.New("invalid hex color")

	// Dataset errors
	ErrDatasetInvalid = errors.New("dataset is invalid")
	ErrNoDataset      = errors.New("no dataset loaded")

	// Map view errors
	ErrViewNotFound        = errors.New("map view not found")
	ErrInvalidViewOption   = errors.New("invalid map view option")
	ErrTooManyViews        = errors.New("map view limit reached")
	ErrGeometryUnavailable = errors.New("geographic source not loaded")
	ErrUnsupportedSource   = errors.New("unsupported source format")
)
