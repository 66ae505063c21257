package dispatch

import (
	"sync"
	"testing"

	"github.com/alice-daq/cruscan/internal/ioscan"
	"github.com/alice-daq/cruscan/internal/rdh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityForWorkerSchedule(t *testing.T) {
	assert.Equal(t, 128, capacityForWorker(1))
	assert.Equal(t, 256, capacityForWorker(2))
	assert.Equal(t, maxCapacity, capacityForWorker(20))
}

func TestDispatcherRoutesByLink(t *testing.T) {
	var mu sync.Mutex
	seen := map[uint16]int{}

	d := New(func(id uint16, tuples <-chan ioscan.Tuple) {
		for range tuples {
			mu.Lock()
			seen[id]++
			mu.Unlock()
		}
	}, nil)

	for link := uint8(0); link < 3; link++ {
		d.Send(uint16(link), ioscan.Tuple{RDH: rdh.RDH{LinkID: link}})
	}
	d.Shutdown()

	assert.Equal(t, 3, d.ActiveWorkers())
	require.Len(t, seen, 3)
	for _, c := range seen {
		assert.Equal(t, 1, c)
	}
}

func TestDispatcherFIFOPerWorker(t *testing.T) {
	var mu sync.Mutex
	var order []int64

	d := New(func(id uint16, tuples <-chan ioscan.Tuple) {
		for tup := range tuples {
			mu.Lock()
			order = append(order, tup.Offset)
			mu.Unlock()
		}
	}, nil)

	for i := int64(0); i < 10; i++ {
		d.Send(0, ioscan.Tuple{RDH: rdh.RDH{LinkID: 0}, Offset: i})
	}
	d.Shutdown()

	require.Len(t, order, 10)
	for i, v := range order {
		assert.Equal(t, int64(i), v)
	}
}

func TestDispatcherRecoversWorkerPanic(t *testing.T) {
	errCh := make(chan error, 1)
	d := New(func(id uint16, tuples <-chan ioscan.Tuple) {
		for range tuples {
			panic("boom")
		}
	}, func(err error) { errCh <- err })

	d.Send(0, ioscan.Tuple{RDH: rdh.RDH{LinkID: 0}})
	d.Shutdown()

	select {
	case err := <-errCh:
		var panicErr *ErrWorkerPanicked
		require.ErrorAs(t, err, &panicErr)
	default:
		t.Fatal("expected onFatal to be invoked")
	}
}
