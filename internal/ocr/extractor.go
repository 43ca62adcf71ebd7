// Package ocr defines the boundary to the document-image extraction
// capability. The core consumes its output shape only; image processing
// itself lives outside this service.
package ocr

import (
	"context"
	"time"
)

// Fields are the identity attributes extracted from a document image. Any of
// them may be absent; Confidence reflects the extractor's overall certainty
// in [0,1]. Once written to a found item at creation, fields are immutable.
type Fields struct {
	FirstName      string
	LastName       string
	BirthDate      *time.Time
	DocumentNumber string
	Confidence     float64
}

// Extractor produces identity fields from an uploaded image reference.
type Extractor interface {
	Extract(ctx context.Context, imageRef string) (Fields, error)
}
