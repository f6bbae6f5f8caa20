// Copyright 2025 Astria Sequencer Contributors
//
// Upgrade scheduler (C12, §4.8). A height-indexed list of consensus-
// visible changes, loaded from YAML the way the teacher loads its own
// operational configuration (gopkg.in/yaml.v3). Two peers disagreeing on
// a scheduled change's contents diverge permanently at its activation
// height; that is the intended consensus signal, not a bug to guard
// against here.

package upgrades

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/astriaorg/astria-go-sequencer/pkg/codec"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

// Installer runs a change's state-installer step (e.g. seeding the
// market map) against the block's overlay.
type Installer func(ov *storage.Overlay) error

// Change is one scheduled upgrade: a name, an activation height, and the
// installer the registry resolves it to.
type Change struct {
	Name             string `yaml:"name"`
	ActivationHeight uint64 `yaml:"activation_height"`
}

// ScheduleFile is the on-disk YAML shape: a flat list of changes.
type ScheduleFile struct {
	Changes []Change `yaml:"changes"`
}

// LoadSchedule reads and parses a schedule file at path.
func LoadSchedule(path string) (ScheduleFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScheduleFile{}, fmt.Errorf("upgrades: read schedule: %w", err)
	}
	var sf ScheduleFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return ScheduleFile{}, fmt.Errorf("upgrades: parse schedule: %w", err)
	}
	return sf, nil
}

// Registry resolves a change's name to the installer code that
// implements it; unknown names fail closed rather than silently no-op,
// since a peer running an older binary without a name's installer must
// not produce a different app hash than a peer that has it.
type Registry struct {
	installers map[string]Installer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{installers: make(map[string]Installer)}
}

// Register adds the installer for a named upgrade. Call once per known
// upgrade at node startup, before any block is processed.
func (r *Registry) Register(name string, install Installer) {
	r.installers[name] = install
}

// ErrUnknownChange is returned when the schedule names a change this
// binary has no installer for.
type ErrUnknownChange struct{ Name string }

func (e ErrUnknownChange) Error() string {
	return fmt.Sprintf("upgrades: no installer registered for change %q", e.Name)
}

func changeHashKey(blockHash []byte, changeName string) []byte {
	return storage.Keyf("upgrades/applied/%x/%s", blockHash, changeName)
}

func scheduledKey(name string) []byte {
	return storage.Keyf("upgrades/scheduled/%s", name)
}

// Scheduler applies a loaded schedule against the chain's overlay, one
// height at a time.
type Scheduler struct {
	schedule ScheduleFile
	registry *Registry
}

// New builds a Scheduler from a loaded schedule and installer registry.
func New(schedule ScheduleFile, registry *Registry) *Scheduler {
	return &Scheduler{schedule: schedule, registry: registry}
}

// AppliedChange is one change applied during ApplyActivated, returned so
// the ABCI driver can surface it in block metadata.
type AppliedChange struct {
	Name             string
	ActivationHeight uint64
	ChangeHash       [32]byte
}

// ApplyActivated runs the state-installer for every scheduled change
// whose activation_height equals height, and records each change's hash
// in the verifiable space keyed by blockHash (§4.8).
func (s *Scheduler) ApplyActivated(ov *storage.Overlay, height uint64, blockHash []byte) ([]AppliedChange, error) {
	var applied []AppliedChange
	for _, c := range s.schedule.Changes {
		if c.ActivationHeight != height {
			continue
		}
		install, ok := s.registry.installers[c.Name]
		if !ok {
			return nil, ErrUnknownChange{Name: c.Name}
		}
		if err := install(ov); err != nil {
			return nil, fmt.Errorf("upgrades: install %q: %w", c.Name, err)
		}
		hash, err := codec.Hash(c)
		if err != nil {
			return nil, err
		}
		ov.Put(storage.Verifiable, changeHashKey(blockHash, c.Name), hash[:])
		applied = append(applied, AppliedChange{Name: c.Name, ActivationHeight: c.ActivationHeight, ChangeHash: hash})
	}
	return applied, nil
}

// Applied lists every change whose activation_height is <= currentHeight
// (the "applied" half of GetUpgradesInfo, §6).
func (s *Scheduler) Applied(currentHeight uint64) []Change {
	var out []Change
	for _, c := range s.schedule.Changes {
		if c.ActivationHeight <= currentHeight {
			out = append(out, c)
		}
	}
	return out
}

// Scheduled lists every change whose activation_height is > currentHeight
// (the "scheduled" half of GetUpgradesInfo, §6).
func (s *Scheduler) Scheduled(currentHeight uint64) []Change {
	var out []Change
	for _, c := range s.schedule.Changes {
		if c.ActivationHeight > currentHeight {
			out = append(out, c)
		}
	}
	return out
}

// ChangeHash returns the recorded hash for a named change applied in
// blockHash's block, if any.
func ChangeHash(ov *storage.Overlay, blockHash []byte, changeName string) ([]byte, error) {
	return ov.Get(storage.Verifiable, changeHashKey(blockHash, changeName))
}

var _ = scheduledKey // reserved for a future per-height scheduled-change index; unused for now
