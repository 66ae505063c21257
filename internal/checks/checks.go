// Package checks implements the declarative expected-counters file
// (base spec C9): an optional set of expected values compared against
// the final stats snapshot after a run.
package checks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alice-daq/cruscan/internal/alpide"
	"github.com/alice-daq/cruscan/internal/stats"
	"github.com/alice-daq/cruscan/internal/tomlcodec"
)

// Expected mirrors base spec §4.8's declarative checks file. Every
// field is optional; a nil pointer means "don't assert this".
type Expected struct {
	Cdps         *uint32    `json:"cdps,omitempty" toml:"cdps,omitempty"`
	TriggersPht  *uint32    `json:"triggers_pht,omitempty" toml:"triggers_pht,omitempty"`
	RdhVersion   *uint8     `json:"rdh_version,omitempty" toml:"rdh_version,omitempty"`
	ChipOrdersOB *ChipOrder `json:"chip_orders_ob,omitempty" toml:"chip_orders_ob,omitempty"`
	ChipCountOB  *uint8     `json:"chip_count_ob,omitempty" toml:"chip_count_ob,omitempty"`
}

// ChipOrder is the ([7]u8, [7]u8) pair named in base spec §4.8.
type ChipOrder struct {
	SetA [7]uint8 `json:"set_a" toml:"set_a"`
	SetB [7]uint8 `json:"set_b" toml:"set_b"`
}

// Load reads an Expected file. The path must end in .json or .toml
// (base spec §4.8); unknown keys are a hard error.
func Load(path string) (Expected, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".toml" {
		return Expected{}, fmt.Errorf("checks file %s: must end in .json or .toml", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Expected{}, fmt.Errorf("read checks file %s: %w", path, err)
	}
	var exp Expected
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&exp); err != nil {
			return Expected{}, fmt.Errorf("parse checks file %s: %w", path, err)
		}
		return exp, nil
	}
	if err := tomlcodec.Decode(bytes.NewReader(raw), &exp); err != nil {
		return Expected{}, fmt.Errorf("parse checks file %s: %w", path, err)
	}
	return exp, nil
}

// Mismatch names one failed assertion.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %s, got %s", m.Field, m.Want, m.Got)
}

// Compare evaluates every non-nil field of exp, returning one Mismatch
// per failed assertion. cdps, triggers_pht and rdh_version are compared
// against snap; chip_count_ob is compared against the analyzer's fixed
// OB chip count of 7 and chip_orders_ob against alpide.DefaultChipOrders.
func Compare(exp Expected, snap stats.StatsSnapshot) []Mismatch {
	var out []Mismatch

	if exp.Cdps != nil && uint32(snap.Cdps) != *exp.Cdps {
		out = append(out, Mismatch{"cdps", fmt.Sprint(*exp.Cdps), fmt.Sprint(snap.Cdps)})
	}
	if exp.TriggersPht != nil && uint32(snap.TriggerCounts.Pht) != *exp.TriggersPht {
		out = append(out, Mismatch{"triggers_pht", fmt.Sprint(*exp.TriggersPht), fmt.Sprint(snap.TriggerCounts.Pht)})
	}
	if exp.RdhVersion != nil && snap.RdhVersion != *exp.RdhVersion {
		out = append(out, Mismatch{"rdh_version", fmt.Sprint(*exp.RdhVersion), fmt.Sprint(snap.RdhVersion)})
	}
	if exp.ChipCountOB != nil && *exp.ChipCountOB != 7 {
		out = append(out, Mismatch{"chip_count_ob", fmt.Sprint(*exp.ChipCountOB), "7"})
	}
	if exp.ChipOrdersOB != nil {
		got := alpide.DefaultChipOrders()
		if got.SetA != exp.ChipOrdersOB.SetA || got.SetB != exp.ChipOrdersOB.SetB {
			out = append(out, Mismatch{
				Field: "chip_orders_ob",
				Want:  fmt.Sprintf("%v/%v", exp.ChipOrdersOB.SetA, exp.ChipOrdersOB.SetB),
				Got:   fmt.Sprintf("%v/%v", got.SetA, got.SetB),
			})
		}
	}
	return out
}
