package stats

import (
	"sort"
	"sync/atomic"

	"github.com/alice-daq/cruscan/internal/logging"
	"gonum.org/v1/gonum/stat"
)

// progressEvery controls how often Run logs a progress line (base spec
// §4.7: "prints progressive status at a bounded rate").
const progressEvery = 10_000

// Actor is the single-consumer stats aggregator (base spec C3). All
// mutable aggregate state is owned exclusively by the goroutine running
// Run; every other goroutine only ever calls Send.
type Actor struct {
	queue     *unboundedQueue
	stopFlag  *atomic.Bool
	maxErrors uint32
	logger    logging.Logger
	done      chan struct{}

	snap          StatsSnapshot
	linkCounts    map[uint8]uint64
	feeSeen       map[uint16]bool
	layerStaves   map[[2]uint8]uint64
	jitterSamples []float64
	rdhsSinceLog  uint64
}

// NewActor constructs an Actor. maxErrors of 0 means no cap.
func NewActor(maxErrors uint32, logger logging.Logger) *Actor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Actor{
		queue:       newUnboundedQueue(),
		stopFlag:    &atomic.Bool{},
		maxErrors:   maxErrors,
		logger:      logger,
		done:        make(chan struct{}),
		linkCounts:  map[uint8]uint64{},
		feeSeen:     map[uint16]bool{},
		layerStaves: map[[2]uint8]uint64{},
	}
}

// StopFlag returns the shared stop flag the scanner polls with an
// acquire-load between tuples (base spec §9).
func (a *Actor) StopFlag() *atomic.Bool { return a.stopFlag }

// Send enqueues ev; safe from any goroutine.
func (a *Actor) Send(ev Event) { a.queue.Push(ev) }

// Close signals no more events will be sent. Call once all producers
// (scanner + every worker) have stopped.
func (a *Actor) Close() { a.queue.Close() }

// Run drains the inbox until Close has been called and the queue is
// empty. It must run in its own goroutine; call Wait to block for
// completion and retrieve the final snapshot.
func (a *Actor) Run() {
	defer close(a.done)
	for {
		ev, ok := a.queue.Pop()
		if !ok {
			return
		}
		a.apply(ev)
	}
}

// Wait blocks until Run has finished and returns the final snapshot.
func (a *Actor) Wait() StatsSnapshot {
	<-a.done
	a.finalize()
	return a.snap
}

func (a *Actor) apply(ev Event) {
	switch ev.Kind {
	case EvRdhVersion:
		a.snap.RdhVersion = ev.Version
	case EvRdhSeen:
		a.snap.RdhsSeen++
		a.snap.PayloadBytes += uint64(ev.PayloadLen)
		a.linkCounts[ev.Link]++
		if !a.feeSeen[ev.Fee] {
			a.feeSeen[ev.Fee] = true
			a.snap.FeeIDsObserved = append(a.snap.FeeIDsObserved, ev.Fee)
		}
		a.rdhsSinceLog++
		if a.rdhsSinceLog >= progressEvery {
			a.rdhsSinceLog = 0
			a.logger.Info("progress", logging.Field{Key: "rdhs_seen", Value: a.snap.RdhsSeen})
		}
	case EvRdhFiltered:
		a.snap.RdhsFiltered++
	case EvHbfSeen:
		a.snap.Hbfs++
	case EvCdpSeen:
		a.snap.Cdps++
	case EvTrigger:
		addTriggerBits(&a.snap.TriggerCounts, ev.TriggerBits)
	case EvLayerStave:
		a.layerStaves[[2]uint8{ev.Layer, ev.Stave}]++
	case EvFee:
		if !a.feeSeen[ev.Fee] {
			a.feeSeen[ev.Fee] = true
			a.snap.FeeIDsObserved = append(a.snap.FeeIDsObserved, ev.Fee)
		}
	case EvLink:
		a.linkCounts[ev.Link]++
	case EvError:
		a.snap.ErrCount++
		a.logger.Warn(ev.Message, logging.Field{Key: "category", Value: string(ev.Category)}, logging.Field{Key: "offset", Value: ev.Offset})
		if a.maxErrors > 0 && uint32(a.snap.ErrCount) > a.maxErrors {
			a.stopFlag.Store(true)
		}
	case EvFatal:
		a.logger.Error(ev.Message)
		a.stopFlag.Store(true)
	case EvRunTrigger:
		a.jitterSamples = append(a.jitterSamples, float64(ev.RunBc))
	case EvAlpideStats:
		a.snap.AlpideStats.ChipsValidated += uint64(ev.AlpideChipsValidated)
		a.snap.AlpideStats.Errors += uint64(ev.AlpideErrors)
	}
}

func addTriggerBits(tc *TriggerCounts, bits uint32) {
	const (
		orbit = 1 << 0
		hb    = 1 << 1
		pht   = 1 << 3
		soc   = 1 << 4
		eoc   = 1 << 5
		tf    = 1 << 9
		sot   = 1 << 11
		eot   = 1 << 12
	)
	if bits&orbit != 0 {
		tc.Orbit++
	}
	if bits&hb != 0 {
		tc.Hb++
	}
	if bits&pht != 0 {
		tc.Pht++
	}
	if bits&soc != 0 {
		tc.Soc++
	}
	if bits&eoc != 0 {
		tc.Eoc++
	}
	if bits&tf != 0 {
		tc.Tf++
	}
	if bits&sot != 0 {
		tc.Sot++
	}
	if bits&eot != 0 {
		tc.Eot++
	}
}

// finalize flattens the map-backed counters into the snapshot's ordered
// slices and computes the gonum-backed trigger-period jitter summary.
func (a *Actor) finalize() {
	links := make([]uint8, 0, len(a.linkCounts))
	for l := range a.linkCounts {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	for _, l := range links {
		a.snap.LinksObserved = append(a.snap.LinksObserved, LinkCount{Link: l, Count: a.linkCounts[l]})
	}

	keys := make([][2]uint8, 0, len(a.layerStaves))
	for k := range a.layerStaves {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		a.snap.PerLayerStaveInventory = append(a.snap.PerLayerStaveInventory, LayerStaveCount{Layer: k[0], Stave: k[1], Count: a.layerStaves[k]})
	}

	sort.Slice(a.snap.FeeIDsObserved, func(i, j int) bool { return a.snap.FeeIDsObserved[i] < a.snap.FeeIDsObserved[j] })

	if n := len(a.jitterSamples); n > 0 {
		mean, std := stat.MeanStdDev(a.jitterSamples, nil)
		a.snap.AlpideStats.TriggerPeriodSamples = uint64(n)
		a.snap.AlpideStats.TriggerPeriodJitterMean = mean
		a.snap.AlpideStats.TriggerPeriodJitterStdDev = std
	}
}
