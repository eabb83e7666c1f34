package statebus

import "strings"

// AdmissionRule is the static per-key policy constraining which writes may
// ever be accepted. Every field is optional; an absent field imposes no
// restriction. Rules are loaded once at startup and never mutated, so a
// RuleSet is safe to consult concurrently from many writers.
type AdmissionRule struct {
	// AllowIf restricts the key to a single value (case-insensitive match).
	AllowIf *string `yaml:"allow_if,omitempty" json:"allow_if,omitempty"`

	// MinPriority rejects writes below this tier regardless of the
	// current record.
	MinPriority *int `yaml:"min_priority,omitempty" json:"min_priority,omitempty"`

	// AllowedSources restricts which writer identities may set the key.
	AllowedSources []string `yaml:"allowed_sources,omitempty" json:"allowed_sources,omitempty"`
}

// RuleSet maps bus keys to their admission rules. Keys without a rule are
// unrestricted.
type RuleSet map[string]AdmissionRule

// Allows evaluates whether a proposed write is permitted by policy.
// It checks, in order: allow_if, min_priority, allowed_sources.
// The priority floor against the current holder is not policy and is
// enforced separately by the bus before rules are consulted.
func (rs RuleSet) Allows(key, value, source string, priority Priority) bool {
	rule, ok := rs[key]
	if !ok {
		return true
	}

	if rule.AllowIf != nil && !strings.EqualFold(value, *rule.AllowIf) {
		return false
	}

	if rule.MinPriority != nil && int(priority) < *rule.MinPriority {
		return false
	}

	if len(rule.AllowedSources) > 0 {
		allowed := false
		for _, s := range rule.AllowedSources {
			if s == source {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}
