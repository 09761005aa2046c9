package domain

import "time"

// BuildRecord describes the last successful image build.
// It is informational only: the presence of the image file decides cache hits.
type BuildRecord struct {
	ImagePath      string        `json:"image_path,omitzero"      yaml:"image_path"`
	Size           int64         `json:"size,omitzero"            yaml:"size"`
	Entries        int           `json:"entries,omitzero"         yaml:"entries"`
	ManifestDigest string        `json:"manifest_digest,omitzero" yaml:"manifest_digest"`
	BuiltAt        time.Time     `json:"built_at,omitzero"        yaml:"built_at"`
	Duration       time.Duration `json:"duration,omitzero"        yaml:"duration"`
}
