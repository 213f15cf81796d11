package service

import (
	"sync"
	"testing"
)

func TestGuardSingleAdmission(t *testing.T) {
	guard := NewGuard()

	const attempts = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.Admit(7) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("admitted = %d, want exactly 1", admitted)
	}
}

func TestGuardReleaseReopens(t *testing.T) {
	guard := NewGuard()

	if !guard.Admit(7) {
		t.Fatal("first Admit failed")
	}
	if guard.Admit(7) {
		t.Fatal("second Admit succeeded while in flight")
	}
	guard.Release(7)
	if !guard.Admit(7) {
		t.Fatal("Admit failed after Release")
	}
}

func TestGuardIndependentIDs(t *testing.T) {
	guard := NewGuard()

	if !guard.Admit(1) || !guard.Admit(2) {
		t.Fatal("distinct ids should admit independently")
	}
	// Releasing an id never admitted is a no-op.
	guard.Release(3)
	if guard.Admit(1) {
		t.Fatal("id 1 readmitted while in flight")
	}
}
