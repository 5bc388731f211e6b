package models

import (
	"encoding/json"
)

// Trace explains how a resolution of one resource and key would proceed.
type Trace struct {
	Path         string   `json:"path"`
	ResourceType string   `json:"resource_type"`
	SessionID    string   `json:"session_id,omitempty"`
	Mode         string   `json:"mode"`
	Name         string   `json:"name,omitempty"`
	Cache        string   `json:"cache"`
	Chain        []string `json:"chain,omitempty"`
	Candidates   []string `json:"candidates"`
	Outcome      Outcome  `json:"outcome"`
	Source       string   `json:"source,omitempty"`
}

// ancestorSource is implemented by registries able to report the chain they
// walk, such as *TypeRegistry.
type ancestorSource interface {
	AncestorChain(resourceType string) []string
}

// Explain reports the cache state, the candidates and the outcome the
// resolution policy yields for res and key. It neither stores cache entries
// nor invokes the mapper, so OutcomeMapped stands for "would be mapped".
func (r *Resolver) Explain(res Resource, key ResolutionKey) (Trace, error) {
	if missing(res) {
		return Trace{}, ErrResourceRequired
	}
	if key.Name != "" {
		key.Mode = ModeIncludingBaseTypes
	}
	trace := Trace{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		SessionID:    res.SessionID(),
		Mode:         key.Mode.String(),
		Name:         key.Name,
		Cache:        r.cache.Lookup(res, key).State().String(),
	}
	if chains, ok := r.registry.(ancestorSource); ok {
		trace.Chain = chains.AncestorChain(res.ResourceType())
	}

	candidates := r.candidates(res, key)
	trace.Candidates = make([]string, len(candidates))
	for i, candidate := range candidates {
		trace.Candidates[i] = candidate.String()
	}
	if outcome, ok := r.reject(candidates, key); !ok {
		trace.Outcome = outcome
		return trace, nil
	}
	trace.Outcome = OutcomeMapped
	trace.Source = candidates[0].Source.String()
	return trace, nil
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
