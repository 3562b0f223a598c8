package extractor

import (
	"bytes"
	"context"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// Extraction paths reported in Report.Path.
const (
	PathHTML = "html"
	PathText = "text"
	PathOCR  = "ocr"
)

// Options carries the per-provider extraction settings.
type Options struct {
	OCRLanguage string
}

// Report describes what an extraction did. Zero tokens is a valid result.
type Report struct {
	Path         string         `json:"path"`
	Pages        int            `json:"pages,omitempty"`
	Lines        int            `json:"lines"`
	Tokens       int            `json:"tokens"`
	Dropped      []DroppedToken `json:"dropped,omitempty"`
	TextError    string         `json:"text_error,omitempty"`
	OCRAttempted bool           `json:"ocr_attempted"`
	OCRError     string         `json:"ocr_error,omitempty"`
}

// Extractor converts fetched content into a flat RawToken stream regardless
// of whether it came from HTML, a PDF text layer or OCR.
type Extractor struct {
	cfg       config.ExtractorConfig
	tokenizer *Tokenizer
	ocr       OCREngine
	logger    zerolog.Logger
}

// New creates an extractor. A nil OCR engine disables the OCR fallback.
func New(cfg config.ExtractorConfig, ocr OCREngine, logger zerolog.Logger) *Extractor {
	if !cfg.EnableOCR {
		ocr = nil
	}
	return &Extractor{
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg.ContextBefore, cfg.ContextAfter),
		ocr:       ocr,
		logger:    logger.With().Str("component", "Extractor").Logger(),
	}
}

// Extract returns the numeric tokens of content. kind is the content kind of
// the fetch result, not of the configured resource. The only error returned
// is a cancelled context; unreadable documents surface as an empty result
// with the reason in the report.
func (e *Extractor) Extract(ctx context.Context, content []byte, kind models.ResourceKind, opts Options) ([]models.RawToken, Report, error) {
	if isPDF(content) {
		return e.extractPDF(ctx, content, opts)
	}

	if kind == models.KindPage || looksLikeHTML(content) {
		report := Report{Path: PathHTML}
		lines, err := HTMLLines(content)
		if err != nil {
			report.TextError = err.Error()
			return nil, report, nil
		}
		tokens, report := e.tokenizeReport(lines, report)
		return tokens, report, nil
	}

	tokens, report := e.tokenizeReport(splitLines(string(content)), Report{Path: PathText})
	return tokens, report, nil
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte, opts Options) ([]models.RawToken, Report, error) {
	report := Report{Path: PathText}

	lines, pages, err := PDFTextLines(content)
	report.Pages = pages
	if err != nil {
		report.TextError = err.Error()
		e.logger.Debug().Err(err).Msg("PDF text layer unreadable")
	}

	var tokens []models.RawToken
	if len(lines) > 0 {
		tokens, report = e.tokenizeReport(lines, report)
	}
	if len(tokens) > 0 || e.ocr == nil {
		return tokens, report, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	language := opts.OCRLanguage
	if language == "" {
		language = e.cfg.OCRLanguage
	}

	report.OCRAttempted = true
	ocrLines, err := e.ocr.Recognize(ctx, content, language)
	if err != nil {
		if ctx.Err() != nil {
			return nil, report, ctx.Err()
		}
		report.OCRError = err.Error()
		e.logger.Warn().Err(err).Msg("OCR fallback failed")
		return nil, report, nil
	}

	report.Path = PathOCR
	report.Dropped = nil
	tokens, report = e.tokenizeReport(ocrLines, report)
	return tokens, report, nil
}

func (e *Extractor) tokenizeReport(lines []string, report Report) ([]models.RawToken, Report) {
	tokens, dropped := e.tokenizer.Tokenize(lines)
	report.Lines = len(lines)
	report.Tokens = len(tokens)
	report.Dropped = dropped
	return tokens, report
}

func isPDF(content []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(content[:min(len(content), 1024)], "\x00\r\n\t "), []byte("%PDF-"))
}

func looksLikeHTML(content []byte) bool {
	head := bytes.ToLower(content[:min(len(content), 512)])
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<table")) || bytes.Contains(head, []byte("<body"))
}
