package drivers

import (
	"sync"
	"testing"

	"github.com/AuraReaper/voom/internal/models"
)

func TestRegisterIsStablePerID(t *testing.T) {
	d := NewDirectory()
	first := d.Register("driver-1", "sedan")
	if first.ID != "driver-1" || first.Name == "" || first.CarPlate == "" {
		t.Fatalf("incomplete profile: %+v", first)
	}
	again := d.Register("driver-1", "suv")
	if again.Name != first.Name || again.CarPlate != first.CarPlate {
		t.Fatalf("profile changed on re-register: %+v vs %+v", first, again)
	}
	if again.PackageSlug != "suv" {
		t.Fatalf("package slug not refreshed: %q", again.PackageSlug)
	}
}

func TestReserveIsExclusive(t *testing.T) {
	d := NewDirectory()
	d.Register("driver-1", "sedan")

	if !d.Reserve("driver-1", "trip-a") {
		t.Fatal("first reserve failed")
	}
	if d.Reserve("driver-1", "trip-b") {
		t.Fatal("reserved driver reserved again for another trip")
	}
	// Re-reserving for the same trip is fine (idempotent commit path).
	if !d.Reserve("driver-1", "trip-a") {
		t.Fatal("same-trip reserve rejected")
	}
	if d.Idle("driver-1") {
		t.Fatal("reserved driver reported idle")
	}

	// Release for the wrong trip is ignored.
	d.Release("driver-1", "trip-b")
	if d.Idle("driver-1") {
		t.Fatal("foreign release freed the driver")
	}
	d.Release("driver-1", "trip-a")
	if !d.Idle("driver-1") {
		t.Fatal("driver not idle after release")
	}
}

func TestReserveRace(t *testing.T) {
	d := NewDirectory()
	d.Register("driver-1", "sedan")

	var wg sync.WaitGroup
	wins := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tripID := "trip-" + string(rune('a'+n))
			if d.Reserve("driver-1", tripID) {
				wins <- tripID
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
}

func TestSetLocationAndActiveTrip(t *testing.T) {
	d := NewDirectory()
	d.Register("driver-1", "sedan")
	loc := models.Coordinate{Latitude: 28.61, Longitude: 77.21}
	d.SetLocation("driver-1", loc, "ttnfv2u")

	got, ok := d.Get("driver-1")
	if !ok || got.Location != loc || got.Geohash != "ttnfv2u" {
		t.Fatalf("location not recorded: %+v", got)
	}

	if _, ok := d.ActiveTrip("driver-1"); ok {
		t.Fatal("idle driver has an active trip")
	}
	d.Reserve("driver-1", "trip-a")
	if id, ok := d.ActiveTrip("driver-1"); !ok || id != "trip-a" {
		t.Fatalf("active trip = %q, %v", id, ok)
	}
}
