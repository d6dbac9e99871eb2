package config

import "time"

// Storage drivers accepted in storage.driver.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

// StorageConfig configures the SQLite database and transcript files.
type StorageConfig struct {
	Driver         string `yaml:"driver"`
	DatabasePath   string `yaml:"database_path"`
	TranscriptsDir string `yaml:"transcripts_dir"`
}

// ToolsConfig configures individual tools.
type ToolsConfig struct {
	// Patient id used when a tool argument omits patient_id.
	DefaultPatientID string `yaml:"default_patient_id"`

	MedicalInfo MedicalInfoConfig `yaml:"medical_info"`
}

// MedicalInfoConfig configures the medical information lookup.
type MedicalInfoConfig struct {
	SearchEnabled bool   `yaml:"search_enabled"`
	SearchURL     string `yaml:"search_url"`
	MaxResults    int    `yaml:"max_results"`
	Timeout       string `yaml:"timeout"`
}

// GetTimeout returns the search timeout as a duration.
func (m MedicalInfoConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(m.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
