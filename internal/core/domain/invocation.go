package domain

// Invocation is a single run of an external command.
type Invocation struct {
	// Name identifies the invocation in logs and telemetry.
	Name string
	// Argv is the command and its arguments.
	Argv []string
	// Environment overrides variables inherited from the current process.
	Environment map[string]string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}
