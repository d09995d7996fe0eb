package drivers

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/AuraReaper/voom/internal/models"
)

// Directory tracks every connected driver: profile, last location, and the
// trip the driver is reserved for. A driver is idle while tripID is empty;
// Reserve flips a driver to busy atomically so two concurrent match attempts
// can never both claim the same driver.
type Directory struct {
	mu      sync.RWMutex
	drivers map[string]*entry
}

type entry struct {
	driver models.Driver
	tripID string
}

func NewDirectory() *Directory {
	return &Directory{drivers: make(map[string]*entry)}
}

// Register adds or refreshes the driver profile for a connecting session.
// Profiles are synthesized from the id the way the provisioning stub does:
// clients only supply an opaque id and a package slug.
func (d *Directory) Register(id, packageSlug string) models.Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.drivers[id]; ok {
		e.driver.PackageSlug = packageSlug
		return e.driver
	}
	seed := seedFor(id)
	drv := models.Driver{
		ID:             id,
		Name:           driverNames[seed%uint32(len(driverNames))],
		PackageSlug:    packageSlug,
		CarPlate:       fmt.Sprintf("KA-%02d-%04d", seed%99, seed%9999),
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?img=%d", seed%70),
	}
	d.drivers[id] = &entry{driver: drv}
	return drv
}

func (d *Directory) Unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drivers, id)
}

// Get returns a copy of the driver profile.
func (d *Directory) Get(id string) (models.Driver, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.drivers[id]
	if !ok {
		return models.Driver{}, false
	}
	return e.driver, true
}

// SetLocation records the latest position and cell for a driver.
func (d *Directory) SetLocation(id string, loc models.Coordinate, cell string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.drivers[id]; ok {
		e.driver.Location = loc
		e.driver.Geohash = cell
	}
}

// Reserve marks the driver busy with tripID. It fails if the driver is
// unknown or already attached to another trip. This is the re-validation
// point between the index snapshot and the assignment commit.
func (d *Directory) Reserve(id, tripID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.drivers[id]
	if !ok || (e.tripID != "" && e.tripID != tripID) {
		return false
	}
	e.tripID = tripID
	return true
}

// Release returns the driver to the idle pool if it is still reserved for
// tripID. A release for a different trip is ignored.
func (d *Directory) Release(id, tripID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.drivers[id]; ok && e.tripID == tripID {
		e.tripID = ""
	}
}

// ActiveTrip returns the trip the driver is currently reserved for.
func (d *Directory) ActiveTrip(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.drivers[id]
	if !ok || e.tripID == "" {
		return "", false
	}
	return e.tripID, true
}

// Idle reports whether the driver is connected and not reserved.
func (d *Directory) Idle(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.drivers[id]
	return ok && e.tripID == ""
}

func seedFor(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}

var driverNames = []string{
	"Arjun", "Meera", "Ravi", "Priya", "Karan", "Anita", "Vikram", "Sana",
	"Rahul", "Divya", "Imran", "Lakshmi", "Nikhil", "Pooja", "Suresh", "Tara",
}
