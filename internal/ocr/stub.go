package ocr

import "context"

// Stub is a deterministic Extractor for development and tests. It returns
// the fields it was constructed with, so flows exercising the OCR boundary
// stay reproducible.
type Stub struct {
	Fields Fields
	Err    error
}

func (s *Stub) Extract(ctx context.Context, imageRef string) (Fields, error) {
	if s.Err != nil {
		return Fields{}, s.Err
	}
	return s.Fields, nil
}
