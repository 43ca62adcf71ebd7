package models

import "findmyid/pkg/domain"

// DocumentType is a catalog entry for a supported identity document.
// Candidate pools for matching are always filtered by document type.
type DocumentType struct {
	ID          domain.DocumentTypeID `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
}
