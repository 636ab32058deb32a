package models

import (
	"gorm.io/gorm"
)

// Document types accepted by the KYC pipeline
const (
	DocIDFront        = "ID_FRONT"
	DocIDBack         = "ID_BACK"
	DocTaxCertificate = "TAX_CERTIFICATE"
	DocUtilityBill    = "UTILITY_BILL"
)

// Document is an uploaded identity or supporting file. Immutable once created.
type Document struct {
	gorm.Model
	UserID       uint   `gorm:"index;not null" json:"userId"`
	Type         string `gorm:"size:32;not null" json:"type"`
	URL          string `gorm:"not null" json:"url"`
	OriginalName string `gorm:"default:''" json:"originalName"`
}

// ExtractionResult records one OCR pass over one document. Never mutated.
type ExtractionResult struct {
	gorm.Model
	UserID         uint   `gorm:"index;not null" json:"userId"`
	DocumentType   string `gorm:"size:32" json:"documentType"`
	SourceURL      string `json:"sourceUrl"`
	RawText        string `gorm:"type:text" json:"rawText"`
	IdentityNumber string `gorm:"default:''" json:"identityNumber,omitempty"`
	TaxNumber      string `gorm:"default:''" json:"taxNumber,omitempty"`
	Matched        bool   `gorm:"default:false" json:"matched"`
}
