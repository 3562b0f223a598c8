package config

// ExtractorConfig defines configuration for document extraction
type ExtractorConfig struct {
	OCRLanguage     string `json:"ocr_language,omitempty" yaml:"ocr_language,omitempty"`
	OCRDPI          int    `json:"ocr_dpi,omitempty" yaml:"ocr_dpi,omitempty" validate:"omitempty,min=72,max=1200"`
	EnableOCR       bool   `json:"enable_ocr" yaml:"enable_ocr"`
	PdftoppmBinary  string `json:"pdftoppm_binary,omitempty" yaml:"pdftoppm_binary,omitempty"`
	TesseractBinary string `json:"tesseract_binary,omitempty" yaml:"tesseract_binary,omitempty"`
	ContextBefore   int    `json:"context_before,omitempty" yaml:"context_before,omitempty" validate:"omitempty,min=0,max=20"`
	ContextAfter    int    `json:"context_after,omitempty" yaml:"context_after,omitempty" validate:"omitempty,min=0,max=20"`
}

// NewDefaultExtractorConfig creates default extractor configuration
func NewDefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		OCRLanguage:     DefaultOCRLanguage,
		OCRDPI:          DefaultOCRDPI,
		EnableOCR:       true,
		PdftoppmBinary:  DefaultPdftoppmBinary,
		TesseractBinary: DefaultTesseractBinary,
		ContextBefore:   DefaultContextBefore,
		ContextAfter:    DefaultContextAfter,
	}
}
