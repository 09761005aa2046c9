package config

// Pgofile represents the structure of the pgo.yaml configuration file.
// Every field is optional; unset fields keep their defaults.
type Pgofile struct {
	Mode             string      `yaml:"mode"`
	Manifest         string      `yaml:"manifest"`
	Image            string      `yaml:"image"`
	FilteredManifest string      `yaml:"filtered_manifest"`
	SelfEntry        *string     `yaml:"self_entry"`
	Prefix           string      `yaml:"prefix"`
	Listen           string      `yaml:"listen"`
	CompressMinSize  *int        `yaml:"compress_min_size"`
	ModeEnv          string      `yaml:"mode_env"`
	ManifestEnv      string      `yaml:"manifest_env"`
	Builder          *BuilderDTO `yaml:"builder"`
}

// BuilderDTO represents the builder section of the configuration.
type BuilderDTO struct {
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
}
