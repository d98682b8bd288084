package voicefilter

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

// VoiceProfile is a registered speaker fingerprint. Signature is L2-unit-norm
// (invariant I4) and immutable after creation except for the usage counters.
type VoiceProfile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Signature  []float64 `json:"signature"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	MatchCount int       `json:"matchCount"`
}

// Registry is the keyed, in-memory store of VoiceProfiles plus the current
// sensitivity. Reads and writes are readers-writers locked: mutations are
// atomic snapshots, matching spec.md §5's shared-resource policy.
type Registry struct {
	mu          sync.RWMutex
	profiles    map[string]*VoiceProfile
	sensitivity float64
}

func NewRegistry(sensitivity float64) *Registry {
	return &Registry{
		profiles:    make(map[string]*VoiceProfile),
		sensitivity: sensitivity,
	}
}

// Add registers a new profile from one or more training frames (raw PCM).
// The id is caller-supplied; re-using an existing id is rejected with
// ErrInvalidInput rather than silently shadowed by a generated one (spec.md
// §9's resolved Open Question). An empty frame set is also InvalidInput.
func (r *Registry) Add(id string, trainingFrames [][]byte, name string) (*VoiceProfile, error) {
	if len(trainingFrames) == 0 {
		return nil, core.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[id]; exists {
		return nil, core.ErrInvalidInput
	}

	vectors := make([][]float64, 0, len(trainingFrames))
	for _, frame := range trainingFrames {
		vectors = append(vectors, ExtractFeatures(frame))
	}

	profile := &VoiceProfile{
		ID:        id,
		Name:      name,
		Signature: AverageAndRenormalize(vectors),
		CreatedAt: time.Now(),
	}
	r.profiles[id] = profile
	return profile, nil
}

// Remove deletes a profile, reporting whether it previously existed.
func (r *Registry) Remove(id string) (existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed = r.profiles[id]
	delete(r.profiles, id)
	return existed
}

// List returns a snapshot copy of all registered profiles.
func (r *Registry) List() []VoiceProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VoiceProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	return out
}

// Rename updates a profile's display name in place.
func (r *Registry) Rename(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return core.ErrProfileNotFound
	}
	p.Name = name
	return nil
}

func (r *Registry) SetSensitivity(s float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitivity = s
}

func (r *Registry) Sensitivity() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sensitivity
}

// Match finds the best-matching profile for a frame's fingerprint. A frame
// is an ignore match iff some profile's similarity is >= sensitivity; the
// winning profile is the argmax. On match, the winning profile's usage
// counters are updated.
func (r *Registry) Match(pcm []byte) core.MatchResult {
	fingerprint := ExtractFeatures(pcm)

	r.mu.RLock()
	sensitivity := r.sensitivity
	var best *VoiceProfile
	var bestScore float64
	for _, p := range r.profiles {
		score := CosineSimilarity(fingerprint, p.Signature)
		if best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}
	r.mu.RUnlock()

	if best == nil || bestScore < sensitivity {
		return core.MatchResult{IsMatch: false, Confidence: bestScore}
	}

	r.mu.Lock()
	if p, ok := r.profiles[best.ID]; ok {
		p.MatchCount++
		p.LastUsedAt = time.Now()
	}
	r.mu.Unlock()

	return core.MatchResult{IsMatch: true, Confidence: bestScore, ProfileID: best.ID}
}

// snapshot is the JSON-serializable registry shape.
type snapshot struct {
	Sensitivity float64        `json:"sensitivity"`
	Profiles    []VoiceProfile `json:"profiles"`
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := snapshot{Sensitivity: r.sensitivity}
	for _, p := range r.profiles {
		s.Profiles = append(s.Profiles, *p)
	}
	return json.Marshal(s)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitivity = s.Sensitivity
	r.profiles = make(map[string]*VoiceProfile, len(s.Profiles))
	for i := range s.Profiles {
		p := s.Profiles[i]
		r.profiles[p.ID] = &p
	}
	return nil
}
