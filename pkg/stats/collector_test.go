package stats

import (
	"sync"
	"testing"
)

func TestCollector_TrackOperation(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperation(OpAllocate)
	collector.TrackOperation(OpAllocate)
	collector.TrackOperation(OpDeallocate)

	stats := collector.GetStats()

	if stats["allocate_ops"].(uint64) != 2 {
		t.Errorf("Expected 2 allocate operations, got %v", stats["allocate_ops"])
	}
	if stats["deallocate_ops"].(uint64) != 1 {
		t.Errorf("Expected 1 deallocate operation, got %v", stats["deallocate_ops"])
	}
	if _, exists := stats["last_allocate_time"]; !exists {
		t.Errorf("Expected last_allocate_time to exist in stats")
	}
	if _, exists := stats["fragmentation_ops"]; exists {
		t.Errorf("Did not expect fragmentation_ops before any fragmentation query")
	}
}

func TestCollector_TrackOperationWithLatency(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperationWithLatency(OpAllocate, 300)
	collector.TrackOperationWithLatency(OpAllocate, 100)
	collector.TrackOperationWithLatency(OpAllocate, 200)

	stats := collector.GetStats()
	latencyStats, ok := stats["allocate_latency"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected allocate_latency to be a map, got %T", stats["allocate_latency"])
	}

	if count := latencyStats["count"].(uint64); count != 3 {
		t.Errorf("Expected 3 latency records, got %v", count)
	}
	if avg := latencyStats["avg_ns"].(uint64); avg != 200 {
		t.Errorf("Expected average latency 200ns, got %v", avg)
	}
	if min := latencyStats["min_ns"].(uint64); min != 100 {
		t.Errorf("Expected min latency 100ns, got %v", min)
	}
	if max := latencyStats["max_ns"].(uint64); max != 300 {
		t.Errorf("Expected max latency 300ns, got %v", max)
	}
}

func TestCollector_AllocationAccounting(t *testing.T) {
	collector := NewAtomicCollector()

	// P1 asks 212 and gets the 500 block, P2 asks 417 and gets 600
	collector.TrackAllocation(212, 500)
	collector.TrackAllocation(417, 600)
	collector.TrackRelease(600)
	collector.TrackFreeUnits(1200)

	stats := collector.GetStats()

	expected := map[string]uint64{
		"units_requested": 629,
		"units_granted":   1100,
		"units_released":  600,
		"units_live":      500,
		"units_peak":      1100,
		"units_free":      1200,
		"internal_waste":  471,
	}
	for key, want := range expected {
		if got := stats[key].(uint64); got != want {
			t.Errorf("Expected %s = %d, got %d", key, want, got)
		}
	}

	// releasing more than is live clamps at zero
	collector.TrackRelease(10000)
	if live := collector.GetStats()["units_live"].(uint64); live != 0 {
		t.Errorf("Expected live units clamped to 0, got %d", live)
	}
}

func TestCollector_TrackError(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackError("no_fit")
	collector.TrackError("no_fit")
	collector.TrackError("not_found")

	errs := collector.GetStats()["errors"].(map[string]uint64)
	if errs["no_fit"] != 2 || errs["not_found"] != 1 {
		t.Errorf("Unexpected error counts: %v", errs)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	collector := NewAtomicCollector()
	const numGoroutines = 10
	const opsPerGoroutine = 999

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				switch j % 3 {
				case 0:
					collector.TrackOperation(OpAllocate)
					collector.TrackAllocation(1, 2)
				case 1:
					collector.TrackOperation(OpSnapshot)
				case 2:
					collector.TrackOperationWithLatency(OpDeallocate, uint64(j))
					collector.TrackError("not_found")
				}
			}
		}()
	}

	wg.Wait()

	stats := collector.GetStats()
	expectedOps := uint64(numGoroutines * opsPerGoroutine / 3)

	for _, key := range []string{"allocate_ops", "snapshot_ops", "deallocate_ops"} {
		if ops := stats[key].(uint64); ops != expectedOps {
			t.Errorf("Expected %d for %s, got %d", expectedOps, key, ops)
		}
	}
	if granted := stats["units_granted"].(uint64); granted != 2*expectedOps {
		t.Errorf("Expected %d granted units, got %d", 2*expectedOps, granted)
	}
	if errs := stats["errors"].(map[string]uint64); errs["not_found"] != expectedOps {
		t.Errorf("Expected %d not_found errors, got %d", expectedOps, errs["not_found"])
	}
}

func TestCollector_GetStatsFiltered(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperation(OpAllocate)
	collector.TrackOperation(OpDeallocate)
	collector.TrackAllocation(10, 20)
	collector.TrackError("no_fit")

	unitStats := collector.GetStatsFiltered("units_")
	if _, exists := unitStats["units_granted"]; !exists {
		t.Errorf("Expected units_granted in filtered stats")
	}
	if _, exists := unitStats["allocate_ops"]; exists {
		t.Errorf("Did not expect allocate_ops in units-filtered stats")
	}

	if _, exists := collector.GetStatsFiltered("error")["errors"]; !exists {
		t.Errorf("Expected errors in error-filtered stats")
	}

	if len(collector.GetStatsFiltered("")) != len(collector.GetStats()) {
		t.Errorf("Expected empty prefix to return everything")
	}
}
