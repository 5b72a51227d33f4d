package models

// Event records one handled completion, import decision, or fix run so
// operators can audit what arrhook did with a delivery.
type Event struct {
	BaseModel

	// Instance is the configured instance name, or "remux" for fix runs.
	Instance string `gorm:"index;size:128" json:"instance"`

	// Kind is the instance kind: sonarr, radarr, or remux.
	Kind string `gorm:"index;size:16" json:"kind"`

	SourcePath string `gorm:"size:1024" json:"source_path,omitempty"`
	DestPath   string `gorm:"index;size:1024" json:"dest_path"`
	DownloadID string `gorm:"size:128" json:"download_id,omitempty"`

	// Outcome is the reconciliation outcome, e.g. delayed, imported,
	// imported_by_path, suppressed, refreshed, fixed, failed.
	Outcome string `gorm:"index;size:32" json:"outcome"`

	// Detail carries the error text for failed outcomes.
	Detail string `gorm:"size:2048" json:"detail,omitempty"`
}
