package domain

// Default configuration values. They match the layout used by the
// code-data-share runtime inside a function container.
const (
	DefaultImagePath            = "/tmp/cds.img"
	DefaultFilteredManifestPath = "/tmp/cds2.lst"
	DefaultSelfEntry            = "pgo_index"
	DefaultPrefix               = "/pgo_dump"
	DefaultListen               = ":9000"
	DefaultModeEnv              = "PYCDSMODE"
	DefaultManifestEnv          = "PYCDSLIST"
	DefaultCompressMinSize      = 1024
)

// DefaultBuilderCommand runs the code-data-share dump entry point. The filtered
// manifest path and the output image path are appended as the last two arguments.
var DefaultBuilderCommand = []string{
	"python3", "-c", "import sys, cds.dump; cds.dump.run_dump(sys.argv[1], sys.argv[2])",
}

// Config is the validated runtime configuration of the image server.
// It is read once at startup and passed explicitly to every component.
type Config struct {
	// Mode must be ModeTrace for the cache to operate.
	Mode Mode
	// ManifestPath is the file listing the traced inputs, one per line.
	ManifestPath string
	// ImagePath is where the built image lives. Its existence is the cache-hit signal.
	ImagePath string
	// FilteredManifestPath is where the manifest without self entries is written before a build.
	FilteredManifestPath string
	// SelfEntry is the line prefix identifying the serving component in the manifest.
	SelfEntry string
	// Prefix is the URI fragment routed to the HTTP front-end.
	Prefix string
	// Listen is the address of the HTTP server.
	Listen string
	// CompressMinSize is the smallest response body that gets gzip encoded.
	CompressMinSize int
	// ModeEnv names the environment variable carrying the mode.
	ModeEnv string
	// Builder describes the external image builder.
	Builder BuilderCommand
}

// BuilderCommand describes how to invoke the external image builder.
type BuilderCommand struct {
	// Command is the argv prefix. Two arguments are appended at run time.
	Command []string
	// Environment holds extra variables for the builder process.
	Environment map[string]string
}

// DefaultConfig returns a Config populated with default values. Mode and
// ManifestPath are left empty: they come from the environment or the config file.
func DefaultConfig() Config {
	return Config{
		ImagePath:            DefaultImagePath,
		FilteredManifestPath: DefaultFilteredManifestPath,
		SelfEntry:            DefaultSelfEntry,
		Prefix:               DefaultPrefix,
		Listen:               DefaultListen,
		CompressMinSize:      DefaultCompressMinSize,
		ModeEnv:              DefaultModeEnv,
		Builder: BuilderCommand{
			Command: append([]string(nil), DefaultBuilderCommand...),
		},
	}
}
