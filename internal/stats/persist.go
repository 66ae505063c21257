package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alice-daq/cruscan/internal/tomlcodec"
)

// Format names the on-disk stats encoding (base spec §6).
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath infers a Format from a file extension, defaulting to
// JSON when the extension is absent or unrecognized.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// ParseFormat validates an explicit --stats-format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported stats format %q", s)
	}
}

// WriteSnapshot persists snap to path using the given format.
func WriteSnapshot(path string, format Format, snap StatsSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats output %s: %w", path, err)
	}
	defer f.Close()
	return EncodeSnapshot(f, format, snap)
}

// EncodeSnapshot writes snap to w using the given format.
func EncodeSnapshot(w io.Writer, format Format, snap StatsSnapshot) error {
	switch format {
	case FormatTOML:
		return tomlcodec.Encode(w, &snap)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
}

// ReadSnapshot loads a persisted snapshot, used by --input-stats to
// compare a prior run's results (base spec §6's "input-stats" flag).
func ReadSnapshot(path string) (StatsSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("open stats input %s: %w", path, err)
	}
	defer f.Close()
	return DecodeSnapshot(f, FormatFromPath(path))
}

// DecodeSnapshot reads a persisted snapshot from r.
func DecodeSnapshot(r io.Reader, format Format) (StatsSnapshot, error) {
	var snap StatsSnapshot
	switch format {
	case FormatTOML:
		if err := tomlcodec.Decode(r, &snap); err != nil {
			return StatsSnapshot{}, err
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return StatsSnapshot{}, err
		}
	}
	return snap, nil
}
