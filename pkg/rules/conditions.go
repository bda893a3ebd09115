package rules

import (
	"sync"

	bertherr "github.com/berth-deploy/berth/pkg/errors"
	"github.com/berth-deploy/berth/pkg/event"
)

// Condition is a named, externally registered predicate a rule can
// reference without the matching engine knowing its implementation.
type Condition func(ev event.Event, rule Rule) (bool, error)

// ConditionRegistry is a name-keyed set of custom conditions,
// populated once at process start.
type ConditionRegistry struct {
	mu         sync.RWMutex
	conditions map[string]Condition
}

func NewConditionRegistry() *ConditionRegistry {
	return &ConditionRegistry{conditions: map[string]Condition{}}
}

func (r *ConditionRegistry) Register(name string, c Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[name] = c
}

// Lookup returns the condition, or an UnknownCustomCondition error.
// Callers must skip the rule on a miss; fail-open is not acceptable.
func (r *ConditionRegistry) Lookup(name string) (Condition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conditions[name]
	if !ok {
		return nil, bertherr.UnknownCustomCondition(name)
	}
	return c, nil
}
