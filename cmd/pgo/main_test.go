package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	tests := []struct {
		name         string
		mode         string
		args         []string
		expectedExit int
	}{
		{
			name:         "Version",
			args:         []string{"pgo", "version"},
			expectedExit: 0,
		},
		{
			name:         "List in TRACE mode",
			mode:         "TRACE",
			args:         []string{"pgo", "list"},
			expectedExit: 0,
		},
		{
			name:         "List outside TRACE mode",
			mode:         "DUMP",
			args:         []string{"pgo", "list"},
			expectedExit: 1,
		},
		{
			name:         "Missing explicit config",
			mode:         "TRACE",
			args:         []string{"pgo", "-c", "missing.yaml", "list"},
			expectedExit: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			manifest := filepath.Join(tmpDir, "cds.lst")
			if err := os.WriteFile(manifest, []byte("json\npgo_index\n"), 0o600); err != nil {
				t.Fatalf("failed to write manifest: %v", err)
			}

			t.Setenv("PYCDSMODE", tt.mode)
			t.Setenv("PYCDSLIST", manifest)

			originalWd, _ := os.Getwd()
			if err := os.Chdir(tmpDir); err != nil {
				t.Fatalf("failed to chdir: %v", err)
			}
			defer func() {
				_ = os.Chdir(originalWd)
			}()

			os.Args = tt.args
			assert.Equal(t, tt.expectedExit, run())
		})
	}
}
