package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/aleister1102/tariffwatch/internal/common/errorwrapper"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/rs/zerolog"
)

// OCREngine turns a PDF without a usable text layer into text lines.
type OCREngine interface {
	Recognize(ctx context.Context, pdf []byte, language string) ([]string, error)
}

// TesseractOCR rasterises pages with pdftoppm and reads them with tesseract.
type TesseractOCR struct {
	pdftoppm  string
	tesseract string
	dpi       int
	logger    zerolog.Logger
}

// NewTesseractOCR creates an OCR engine driving the configured binaries
func NewTesseractOCR(cfg config.ExtractorConfig, logger zerolog.Logger) *TesseractOCR {
	ocr := &TesseractOCR{
		pdftoppm:  cfg.PdftoppmBinary,
		tesseract: cfg.TesseractBinary,
		dpi:       cfg.OCRDPI,
		logger:    logger.With().Str("component", "TesseractOCR").Logger(),
	}
	if ocr.pdftoppm == "" {
		ocr.pdftoppm = config.DefaultPdftoppmBinary
	}
	if ocr.tesseract == "" {
		ocr.tesseract = config.DefaultTesseractBinary
	}
	if ocr.dpi <= 0 {
		ocr.dpi = config.DefaultOCRDPI
	}
	return ocr
}

// Available reports whether both binaries can be found on PATH.
func (t *TesseractOCR) Available() error {
	for _, bin := range []string{t.pdftoppm, t.tesseract} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", errorwrapper.ErrToolUnavailable, bin)
		}
	}
	return nil
}

// Recognize renders every page to PNG and returns the recognised lines in page order.
func (t *TesseractOCR) Recognize(ctx context.Context, pdf []byte, language string) ([]string, error) {
	if err := t.Available(); err != nil {
		return nil, err
	}
	if language == "" {
		language = config.DefaultOCRLanguage
	}

	workDir, err := os.MkdirTemp("", "tariffwatch-ocr-*")
	if err != nil {
		return nil, errorwrapper.WrapError(err, "create OCR work dir")
	}
	defer os.RemoveAll(workDir)

	input := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, errorwrapper.WrapError(err, "write OCR input")
	}

	prefix := filepath.Join(workDir, "page")
	if out, err := exec.CommandContext(ctx, t.pdftoppm, "-r", fmt.Sprint(t.dpi), "-png", input, prefix).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, bytes.TrimSpace(out))
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm pads page numbers to the same width, so lexical order is page order
	sort.Strings(images)

	var lines []string
	for _, img := range images {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, t.tesseract, img, "stdout", "-l", language)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return lines, ctx.Err()
			}
			t.logger.Warn().Err(err).Str("image", filepath.Base(img)).Str("stderr", stderr.String()).Msg("OCR failed for page, skipping")
			continue
		}
		lines = append(lines, splitLines(stdout.String())...)
	}

	t.logger.Debug().Int("pages", len(images)).Int("lines", len(lines)).Msg("OCR completed")
	return lines, nil
}
