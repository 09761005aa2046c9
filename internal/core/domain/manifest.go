package domain

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Manifest is the ordered list of input lines handed to the image builder.
// Lines keep their line terminators so that a filtered copy is byte-for-byte
// identical to the source minus the dropped lines.
type Manifest []string

// ParseManifest splits raw manifest text into lines.
func ParseManifest(data []byte) Manifest {
	if len(data) == 0 {
		return Manifest{}
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return Manifest(lines)
}

// WithoutSelf returns a copy of the manifest without the lines that name the
// serving component itself. An empty selfEntry keeps every line.
func (m Manifest) WithoutSelf(selfEntry string) Manifest {
	out := make(Manifest, 0, len(m))
	for _, line := range m {
		if selfEntry != "" && strings.HasPrefix(line, selfEntry) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Bytes joins the lines back into manifest text.
func (m Manifest) Bytes() []byte {
	return []byte(strings.Join(m, ""))
}

// Digest returns a stable fingerprint of the manifest contents.
func (m Manifest) Digest() string {
	d := xxhash.New()
	for _, line := range m {
		_, _ = d.WriteString(line)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
