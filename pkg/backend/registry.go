package backend

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/agnivade/levenshtein"
	"github.com/rhuss/chorus/pkg/api"
)

// PresetRandom is the preset name that picks chat backends at random.
const PresetRandom = "random"

// Registry is an immutable, ID-indexed set of backend descriptors.
type Registry struct {
	order      []string
	byID       map[string]Descriptor
	defaultID  string
	presets    map[string][]string
	randomSize int
}

// Option configures a Registry.
type Option func(*Registry)

// WithPresets sets the named backend groups. Every referenced ID must exist.
func WithPresets(presets map[string][]string) Option {
	return func(r *Registry) {
		for name, ids := range presets {
			r.presets[name] = slices.Clone(ids)
		}
	}
}

// WithRandomPresetSize sets how many backends the "random" preset selects.
func WithRandomPresetSize(n int) Option {
	return func(r *Registry) { r.randomSize = n }
}

// New builds a registry. It fails when a descriptor is malformed, an ID is
// duplicated, the default is unknown, or a preset references an unknown ID.
func New(descriptors []Descriptor, defaultID string, opts ...Option) (*Registry, error) {
	r := &Registry{
		byID:       make(map[string]Descriptor, len(descriptors)),
		presets:    make(map[string][]string),
		randomSize: 3,
	}

	var errs []error
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byID[d.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate backend id %q", d.ID))
			continue
		}
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	for _, opt := range opts {
		opt(r)
	}

	if defaultID == "" && len(r.order) > 0 {
		defaultID = r.order[0]
	}
	if d, ok := r.byID[defaultID]; !ok {
		errs = append(errs, fmt.Errorf("default backend %q is not registered", defaultID))
	} else if d.Kind != KindChatOpenAICompatible {
		errs = append(errs, fmt.Errorf("default backend %q must be a chat backend", defaultID))
	}
	r.defaultID = defaultID

	for name, ids := range r.presets {
		for _, id := range ids {
			if _, ok := r.byID[id]; !ok {
				errs = append(errs, fmt.Errorf("preset %q references unknown backend %q", name, id))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the descriptor for id.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		msg := fmt.Sprintf("backend %q not found", id)
		if s := closest(id, r.order); s != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", s)
		}
		return Descriptor{}, api.NewNotFoundError(msg)
	}
	if !d.Kind.Valid() {
		return Descriptor{}, api.NewBackendUnsupported(id, fmt.Sprintf("unknown provider kind %q", d.Kind))
	}
	return d, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ListByKind returns descriptors of the given kind in registration order.
func (r *Registry) ListByKind(kinds ...ProviderKind) []Descriptor {
	var out []Descriptor
	for _, id := range r.order {
		d := r.byID[id]
		if slices.Contains(kinds, d.Kind) {
			out = append(out, d)
		}
	}
	return out
}

// Images returns every image backend.
func (r *Registry) Images() []Descriptor {
	return r.ListByKind(KindImageOpenAI, KindImageHuggingFace, KindImageStabilityAI)
}

// Default returns the default chat backend.
func (r *Registry) Default() Descriptor {
	return r.byID[r.defaultID]
}

// Preset returns the backend IDs for a named preset. The "random" preset
// draws distinct chat backends on every call.
func (r *Registry) Preset(name string) ([]string, error) {
	if ids, ok := r.presets[name]; ok {
		return slices.Clone(ids), nil
	}
	if name == PresetRandom {
		return r.randomChat(), nil
	}

	names := make([]string, 0, len(r.presets)+1)
	for n := range r.presets {
		names = append(names, n)
	}
	names = append(names, PresetRandom)
	msg := fmt.Sprintf("preset %q not found", name)
	if s := closest(name, names); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return nil, api.NewNotFoundError(msg)
}

// PresetNames lists the configured presets, sorted.
func (r *Registry) PresetNames() []string {
	names := make([]string, 0, len(r.presets))
	for n := range r.presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) randomChat() []string {
	var ids []string
	for _, d := range r.ListByKind(KindChatOpenAICompatible) {
		ids = append(ids, d.ID)
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > r.randomSize {
		ids = ids[:r.randomSize]
	}
	return ids
}

// closest returns the candidate nearest to s, or "" when nothing is close
// enough to be a plausible typo.
func closest(s string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(s)/3) {
		return ""
	}
	return best
}
