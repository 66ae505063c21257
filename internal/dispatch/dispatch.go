// Package dispatch implements the tuple fan-out to per-link/per-FEE
// workers (base spec C4): a bounded-channel pool, lazily grown, handing
// ownership of each tuple to exactly one worker.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/alice-daq/cruscan/internal/ioscan"
)

// firstCapacity and maxCapacity bound the channel capacity schedule of
// base spec §4.3: worker n gets min(128<<(n-1), 128<<7).
const (
	firstCapacity = 128
	maxCapacity   = 128 << 7
)

func capacityForWorker(n int) int {
	cap := firstCapacity << (n - 1)
	if cap > maxCapacity || cap <= 0 {
		return maxCapacity
	}
	return cap
}

// WorkerFunc processes every tuple routed to one DispatchId, in FIFO
// order, until its channel is closed.
type WorkerFunc func(id uint16, tuples <-chan ioscan.Tuple)

// Dispatcher routes tuples by DispatchId to lazily spawned workers over
// bounded channels (base spec C4), adapting a lazy-create-on-miss
// client-pool shape from a reusable resource pool into a fan-out
// router.
type Dispatcher struct {
	mu      sync.Mutex
	worker  WorkerFunc
	onFatal func(error)
	senders map[uint16]chan ioscan.Tuple
	order   []uint16
	wg      sync.WaitGroup
}

// New constructs a Dispatcher that spawns worker for every newly seen
// DispatchId. onFatal is invoked (from the panicking worker's own
// goroutine, after recovery) if a worker panics.
func New(worker WorkerFunc, onFatal func(error)) *Dispatcher {
	if onFatal == nil {
		onFatal = func(error) {}
	}
	return &Dispatcher{
		worker:  worker,
		onFatal: onFatal,
		senders: map[uint16]chan ioscan.Tuple{},
	}
}

// DispatchID computes the routing key of base spec §4.3: fee_id when
// byStave is true (ITS-stave granularity), otherwise link_id promoted
// to 16 bits.
func DispatchID(t ioscan.Tuple, byStave bool) uint16 {
	if byStave {
		return t.RDH.FeeID
	}
	return uint16(t.RDH.LinkID)
}

// Send routes t to its worker, spawning one if this is the first tuple
// seen for its DispatchId. Send blocks if the target channel is full
// (backpressure, base spec §4.3).
func (d *Dispatcher) Send(id uint16, t ioscan.Tuple) {
	ch := d.senderFor(id)
	ch <- t
}

func (d *Dispatcher) senderFor(id uint16) chan ioscan.Tuple {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.senders[id]; ok {
		return ch
	}
	n := len(d.order) + 1
	ch := make(chan ioscan.Tuple, capacityForWorker(n))
	d.senders[id] = ch
	d.order = append(d.order, id)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.onFatal(&ErrWorkerPanicked{DispatchId: id, Recovered: r})
			}
		}()
		d.worker(id, ch)
	}()
	return ch
}

// Shutdown closes every worker channel in spawn order and waits for all
// workers to drain and return (base spec §4.3: "drop all senders ...
// then join all workers in insertion order").
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	order := append([]uint16(nil), d.order...)
	senders := d.senders
	d.mu.Unlock()

	for _, id := range order {
		close(senders[id])
	}
	d.wg.Wait()
}

// ActiveWorkers reports how many DispatchIds have been spawned so far.
func (d *Dispatcher) ActiveWorkers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// ErrWorkerPanicked wraps a recovered worker panic into the fatal path
// named by base spec §4.3 ("worker panics propagate as fatal").
type ErrWorkerPanicked struct {
	DispatchId uint16
	Recovered  any
}

func (e *ErrWorkerPanicked) Error() string {
	return fmt.Sprintf("dispatch: worker %d panicked: %v", e.DispatchId, e.Recovered)
}
