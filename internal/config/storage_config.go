package config

// ChangeStoreConfig defines where fingerprints, snapshots and diffs live.
type ChangeStoreConfig struct {
	StateFile            string   `json:"state_file,omitempty" yaml:"state_file,omitempty" validate:"required"`
	ArchiveDir           string   `json:"archive_dir,omitempty" yaml:"archive_dir,omitempty" validate:"required"`
	MTimeToleranceMillis int      `json:"mtime_tolerance_ms,omitempty" yaml:"mtime_tolerance_ms,omitempty" validate:"omitempty,min=0"`
	VolatileMarkers      []string `json:"volatile_markers,omitempty" yaml:"volatile_markers,omitempty"`
	DisableArchive       bool     `json:"disable_archive" yaml:"disable_archive"`
}

// NewDefaultChangeStoreConfig creates default change store configuration
func NewDefaultChangeStoreConfig() ChangeStoreConfig {
	return ChangeStoreConfig{
		StateFile:            DefaultStateFile,
		ArchiveDir:           DefaultArchiveDir,
		MTimeToleranceMillis: DefaultMTimeToleranceMillis,
		VolatileMarkers:      append([]string(nil), DefaultVolatileMarkers...),
	}
}

// StorageConfig defines configuration for the record sinks
type StorageConfig struct {
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd gzip snappy none"`
	ParquetBasePath  string `json:"parquet_base_path,omitempty" yaml:"parquet_base_path,omitempty"`
	EnableParquet    bool   `json:"enable_parquet" yaml:"enable_parquet"`
	SQLitePath       string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	EnableSQLite     bool   `json:"enable_sqlite" yaml:"enable_sqlite"`
	ReportDir        string `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		CompressionCodec: DefaultStorageCompressionCodec,
		ParquetBasePath:  DefaultStorageParquetBasePath,
		EnableParquet:    true,
		SQLitePath:       DefaultStorageSQLitePath,
		EnableSQLite:     true,
		ReportDir:        DefaultReportDir,
	}
}
