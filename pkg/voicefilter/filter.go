package voicefilter

import "github.com/hushcore/hushcore/pkg/core"

// Filter gates the pipeline: frames matching a registered ignore profile
// never reach transcription. It is a thin façade over Registry so callers
// depend on the spec's named contract rather than the storage detail.
type Filter struct {
	registry *Registry
}

func NewFilter(registry *Registry) *Filter {
	return &Filter{registry: registry}
}

func (f *Filter) Match(pcm []byte) core.MatchResult {
	return f.registry.Match(pcm)
}

func (f *Filter) Registry() *Registry {
	return f.registry
}
