package datastore

import (
	"time"

	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/rs/zerolog"
)

// RecordTransformer converts tariff records to and from their parquet rows.
type RecordTransformer struct {
	logger zerolog.Logger
}

// NewRecordTransformer creates a new RecordTransformer
func NewRecordTransformer(logger zerolog.Logger) *RecordTransformer {
	return &RecordTransformer{
		logger: logger.With().Str("component", "RecordTransformer").Logger(),
	}
}

// ToParquet converts a record produced during runID.
func (rt *RecordTransformer) ToParquet(r models.TariffRecord, runID string) models.ParquetTariffRecord {
	var power *int32
	if r.PowerKVA != nil {
		v := int32(*r.PowerKVA)
		power = &v
	}
	extractedAt := r.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}

	return models.ParquetTariffRecord{
		RunID:           runID,
		Provider:        r.Provider,
		OfferLabel:      r.OfferLabel,
		OfferCanonical:  StringPtrOrNil(r.OfferCanonical),
		OfferConfidence: r.OfferConfidence,
		PriceType:       string(r.PriceType),
		Unit:            r.Unit,
		PriceHT:         r.PriceHT,
		PriceTTC:        r.PriceTTC,
		PowerKVA:        power,
		TariffOption:    StringPtrOrNil(r.TariffOption),
		Confidence:      r.Confidence,
		Frequency:       int32(r.Frequency),
		SourceKind:      string(r.Source.Kind),
		SourceLocation:  r.Source.Location,
		DedupKey:        r.DedupKey(),
		ExtractedAt:     extractedAt.UnixMilli(),
	}
}

// FromParquet rebuilds a record from a stored row. Rank is not persisted.
func (rt *RecordTransformer) FromParquet(row models.ParquetTariffRecord) models.TariffRecord {
	r := models.TariffRecord{
		Provider:        row.Provider,
		OfferLabel:      row.OfferLabel,
		OfferConfidence: row.OfferConfidence,
		PriceType:       models.PriceType(row.PriceType),
		Unit:            row.Unit,
		PriceHT:         row.PriceHT,
		PriceTTC:        row.PriceTTC,
		Confidence:      row.Confidence,
		Frequency:       int(row.Frequency),
		Source:          models.NewResourceIdentity(row.Provider, row.SourceLocation, models.ResourceKind(row.SourceKind)),
		ExtractedAt:     time.UnixMilli(row.ExtractedAt).UTC(),
	}
	if row.OfferCanonical != nil {
		r.OfferCanonical = *row.OfferCanonical
	}
	if row.TariffOption != nil {
		r.TariffOption = *row.TariffOption
	}
	if row.PowerKVA != nil {
		r.PowerKVA = models.IntPtr(int(*row.PowerKVA))
	}
	return r
}

// StringPtrOrNil converts string to pointer, or nil if string is empty
func StringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
