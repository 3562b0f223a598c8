package models

// ParquetTariffRecord is the on-disk row of the record archive. Optional
// columns use pointers.
type ParquetTariffRecord struct {
	RunID           string  `parquet:"run_id"`
	Provider        string  `parquet:"provider"`
	OfferLabel      string  `parquet:"offer_label"`
	OfferCanonical  *string `parquet:"offer_canonical,optional"`
	OfferConfidence float64 `parquet:"offer_confidence"`
	PriceType       string  `parquet:"price_type"`
	Unit            string  `parquet:"unit"`
	PriceHT         float64 `parquet:"price_ht"`
	PriceTTC        float64 `parquet:"price_ttc"`
	PowerKVA        *int32  `parquet:"power_kva,optional"`
	TariffOption    *string `parquet:"tariff_option,optional"`
	Confidence      float64 `parquet:"confidence"`
	Frequency       int32   `parquet:"frequency"`
	SourceKind      string  `parquet:"source_kind"`
	SourceLocation  string  `parquet:"source_location"`
	DedupKey        string  `parquet:"dedup_key"`
	ExtractedAt     int64   `parquet:"extracted_at"` // Unix milliseconds
}
