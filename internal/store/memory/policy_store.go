package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/barcraft/harvester/internal/harvest"
)

// PolicyStore keeps source policies keyed by domain.
type PolicyStore struct {
	mu       sync.RWMutex
	byDomain map[string]harvest.SourcePolicy
}

// NewPolicyStore constructs a PolicyStore from the given policies.
func NewPolicyStore(policies []harvest.SourcePolicy) *PolicyStore {
	byDomain := make(map[string]harvest.SourcePolicy, len(policies))
	for _, p := range policies {
		byDomain[strings.ToLower(p.Domain)] = p
	}
	return &PolicyStore{byDomain: byDomain}
}

// LoadPolicyFile reads a JSON array of source policies from disk.
func LoadPolicyFile(path string) ([]harvest.SourcePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var policies []harvest.SourcePolicy
	if err := json.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return policies, nil
}

// ForDomain fetches the policy covering the domain, walking up subdomains.
func (s *PolicyStore) ForDomain(_ context.Context, domain string) (harvest.SourcePolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := strings.ToLower(strings.TrimPrefix(domain, "www."))
	for key != "" {
		if policy, ok := s.byDomain[key]; ok {
			return policy, true, nil
		}
		i := strings.Index(key, ".")
		if i < 0 {
			break
		}
		key = key[i+1:]
	}
	return harvest.SourcePolicy{}, false, nil
}

// List returns every policy sorted by domain.
func (s *PolicyStore) List(_ context.Context) ([]harvest.SourcePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.SourcePolicy, 0, len(s.byDomain))
	for _, p := range s.byDomain {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// SetActive flips the kill switch for a domain.
func (s *PolicyStore) SetActive(_ context.Context, domain string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(domain)
	policy, ok := s.byDomain[key]
	if !ok {
		return ErrNotFound
	}
	policy.Active = active
	s.byDomain[key] = policy
	return nil
}
