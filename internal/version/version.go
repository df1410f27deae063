// version.go - Proof-system version bindings and the height-indexed schedule.
//
// Every transaction names the (circuit, suite) pair it was proven under. The
// schedule decides which pairs are acceptable at a given block height, so
// circuit upgrades and suite retirements roll out at planned heights instead
// of by node restarts.

package version

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Circuit versions.
const (
	CircuitV1 uint16 = 1
	CircuitV2 uint16 = 2
)

// Proving suites.
const (
	SuiteAlpha uint16 = 1
	SuiteBeta  uint16 = 2
	SuiteGamma uint16 = 3
)

var (
	// ErrUnsupportedVersion reports a binding outside the active matrix. It is
	// deliberately distinct from proof verification failure: a valid proof
	// under a retired binding is still rejected with this error.
	ErrUnsupportedVersion = errors.New("version: binding not active at this height")
	// ErrScheduleConflict reports overlapping or out-of-order schedule entries.
	ErrScheduleConflict = errors.New("version: conflicting schedule entry")
)

// Binding identifies the proof system a transaction commits to.
type Binding struct {
	Circuit uint16 `json:"circuit"`
	Suite   uint16 `json:"suite"`
}

// DefaultBinding is what current wallets prove under.
var DefaultBinding = Binding{Circuit: CircuitV2, Suite: SuiteGamma}

func (b Binding) String() string {
	return fmt.Sprintf("circuit=%d suite=%d", b.Circuit, b.Suite)
}

// window is a half-open activation interval. retireAt==0 means never retires.
// A retired binding may name the binding wallets should re-prove under.
type window struct {
	activateAt   uint64
	retireAt     uint64
	upgradeTo    Binding
	hasUpgradeTo bool
}

// Schedule maps bindings to activation windows. Zero value is an empty
// schedule rejecting everything; construct with NewSchedule.
type Schedule struct {
	windows map[Binding]window
}

// NewSchedule returns a schedule with no active bindings.
func NewSchedule() *Schedule {
	return &Schedule{windows: make(map[Binding]window)}
}

// DefaultSchedule activates the default binding from genesis. Test networks
// and fresh deployments start here.
func DefaultSchedule() *Schedule {
	s := NewSchedule()
	s.Activate(DefaultBinding, 0)
	return s
}

// Activate schedules a binding to become acceptable at height. Re-activating
// an already scheduled binding is a conflict.
func (s *Schedule) Activate(b Binding, height uint64) error {
	if _, ok := s.windows[b]; ok {
		return fmt.Errorf("%w: %s already scheduled", ErrScheduleConflict, b)
	}
	s.windows[b] = window{activateAt: height}
	return nil
}

// Retire schedules the last acceptable height for a binding. Blocks at
// heights strictly greater than height reject it.
func (s *Schedule) Retire(b Binding, height uint64) error {
	w, ok := s.windows[b]
	if !ok {
		return fmt.Errorf("%w: %s never activated", ErrScheduleConflict, b)
	}
	if w.retireAt != 0 {
		return fmt.Errorf("%w: %s already retired", ErrScheduleConflict, b)
	}
	if height < w.activateAt {
		return fmt.Errorf("%w: retirement %d precedes activation %d", ErrScheduleConflict, height, w.activateAt)
	}
	w.retireAt = height + 1
	s.windows[b] = w
	return nil
}

// RetireWithUpgrade retires a binding and records its required successor.
// The successor must itself be scheduled.
func (s *Schedule) RetireWithUpgrade(b Binding, height uint64, next Binding) error {
	if _, ok := s.windows[next]; !ok {
		return fmt.Errorf("%w: upgrade target %s never activated", ErrScheduleConflict, next)
	}
	if err := s.Retire(b, height); err != nil {
		return err
	}
	w := s.windows[b]
	w.upgradeTo = next
	w.hasUpgradeTo = true
	s.windows[b] = w
	return nil
}

// UpgradeFor returns the required successor for a retired binding, when one
// was scheduled. Rejection messages carry it so wallets know what to re-prove
// under.
func (s *Schedule) UpgradeFor(b Binding) (Binding, bool) {
	w, ok := s.windows[b]
	if !ok || !w.hasUpgradeTo {
		return Binding{}, false
	}
	return w.upgradeTo, true
}

// AllowedAt reports whether b is acceptable in a block at the given height.
func (s *Schedule) AllowedAt(b Binding, height uint64) bool {
	w, ok := s.windows[b]
	if !ok {
		return false
	}
	if height < w.activateAt {
		return false
	}
	if w.retireAt != 0 && height >= w.retireAt {
		return false
	}
	return true
}

// Check returns ErrUnsupportedVersion when b is not acceptable at height.
func (s *Schedule) Check(b Binding, height uint64) error {
	if s.AllowedAt(b, height) {
		return nil
	}
	if next, ok := s.UpgradeFor(b); ok {
		return fmt.Errorf("%w: %s at height %d, upgrade to %s", ErrUnsupportedVersion, b, height, next)
	}
	return fmt.Errorf("%w: %s at height %d", ErrUnsupportedVersion, b, height)
}

// ActiveAt returns the sorted set of bindings acceptable at height.
func (s *Schedule) ActiveAt(height uint64) []Binding {
	var active []Binding
	for b := range s.windows {
		if s.AllowedAt(b, height) {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Circuit != active[j].Circuit {
			return active[i].Circuit < active[j].Circuit
		}
		return active[i].Suite < active[j].Suite
	})
	return active
}

// FirstUnsupported scans a batch of bindings and returns the index and
// binding of the first one the schedule rejects at height, or -1.
func (s *Schedule) FirstUnsupported(bindings []Binding, height uint64) (int, Binding) {
	for i, b := range bindings {
		if !s.AllowedAt(b, height) {
			return i, b
		}
	}
	return -1, Binding{}
}

// MatrixCommitment hashes the set of bindings active at height. Replicas with
// identical schedules agree on the commitment for every height, so a schedule
// divergence surfaces as a commitment mismatch instead of silent forking.
func (s *Schedule) MatrixCommitment(height uint64) [48]byte {
	active := s.ActiveAt(height)
	h := sha512.New384()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	h.Write(buf[:])
	for _, b := range active {
		var entry [4]byte
		binary.BigEndian.PutUint16(entry[0:2], b.Circuit)
		binary.BigEndian.PutUint16(entry[2:4], b.Suite)
		h.Write(entry[:])
	}
	var out [48]byte
	h.Sum(out[:0])
	return out
}
