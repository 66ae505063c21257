package stats

// StatsSnapshot is the total-ordered, persistable aggregate named in
// base spec §3. Field names are stable across JSON and TOML encodings
// (base spec §6: "round-trip must be an identity").
type StatsSnapshot struct {
	RdhsSeen               uint64            `json:"rdhs_seen" toml:"rdhs_seen"`
	RdhsFiltered           uint64            `json:"rdhs_filtered" toml:"rdhs_filtered"`
	PayloadBytes           uint64            `json:"payload_bytes" toml:"payload_bytes"`
	Hbfs                   uint64            `json:"hbfs" toml:"hbfs"`
	Cdps                   uint64            `json:"cdps" toml:"cdps"`
	ErrCount               uint64            `json:"err_count" toml:"err_count"`
	TriggerCounts          TriggerCounts     `json:"trigger_counts" toml:"trigger_counts"`
	LinksObserved          []LinkCount       `json:"links_observed" toml:"links_observed"`
	FeeIDsObserved         []uint16          `json:"fee_ids_observed" toml:"fee_ids_observed"`
	SystemID               uint8             `json:"system_id" toml:"system_id"`
	RdhVersion             uint8             `json:"rdh_version" toml:"rdh_version"`
	PerLayerStaveInventory []LayerStaveCount `json:"per_layer_stave_inventory" toml:"per_layer_stave_inventory"`
	AlpideStats            AlpideStats       `json:"alpide_stats" toml:"alpide_stats"`

	NotFound []string `json:"not_found,omitempty" toml:"not_found,omitempty"`
}

// TriggerCounts tallies the trigger_type bitfield occurrences named in
// base spec §3.
type TriggerCounts struct {
	Orbit uint64 `json:"orbit" toml:"orbit"`
	Hb    uint64 `json:"hb" toml:"hb"`
	Pht   uint64 `json:"pht" toml:"pht"`
	Soc   uint64 `json:"soc" toml:"soc"`
	Eoc   uint64 `json:"eoc" toml:"eoc"`
	Tf    uint64 `json:"tf" toml:"tf"`
	Sot   uint64 `json:"sot" toml:"sot"`
	Eot   uint64 `json:"eot" toml:"eot"`
}

// LinkCount is one link_id's observed RDH count (supplements base spec
// §3's per-link inventory, per SPEC_FULL.md §C.3).
type LinkCount struct {
	Link  uint8  `json:"link" toml:"link"`
	Count uint64 `json:"count" toml:"count"`
}

// LayerStaveCount is one (layer, stave) pair's observed RDH count
// (base spec §3's per_layer_stave_inventory).
type LayerStaveCount struct {
	Layer uint8  `json:"layer" toml:"layer"`
	Stave uint8  `json:"stave" toml:"stave"`
	Count uint64 `json:"count" toml:"count"`
}

// AlpideStats aggregates payload-depth ITS/ALPIDE results, including the
// gonum-backed trigger-period jitter summary (SPEC_FULL.md §B).
type AlpideStats struct {
	ChipsValidated            uint64  `json:"chips_validated" toml:"chips_validated"`
	Errors                    uint64  `json:"errors" toml:"errors"`
	TriggerPeriodSamples      uint64  `json:"trigger_period_samples" toml:"trigger_period_samples"`
	TriggerPeriodJitterMean   float64 `json:"trigger_period_jitter_mean" toml:"trigger_period_jitter_mean"`
	TriggerPeriodJitterStdDev float64 `json:"trigger_period_jitter_stddev" toml:"trigger_period_jitter_stddev"`
}
