package flags

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EvaluateMany evaluates many flag keys for one context. Flag bodies are
// fetched from storage in a single concurrent fan-out rather than N
// sequential round-trips; each key's cascade then runs with isolated failure
// handling, so one key's storage failure or panic never affects another
// key's result. Results are keyed by flag key and independent of the order
// the keys were supplied in.
func (e *Evaluator) EvaluateMany(ctx context.Context, keys []string, ectx EvaluationContext, opts ...EvaluateOption) map[string]EvaluationResult {
	results := make(map[string]EvaluationResult, len(keys))
	if len(keys) == 0 {
		return results
	}

	type fetched struct {
		flag *Flag
		err  error
	}
	flagsByIndex := make([]fetched, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					flagsByIndex[i] = fetched{err: fmt.Errorf("flag lookup panicked: %v", r)}
				}
			}()
			f, err := e.fetchFlag(ctx, key, ectx)
			flagsByIndex[i] = fetched{flag: f, err: err}
		}(i, key)
	}
	wg.Wait()

	for i, key := range keys {
		switch {
		case errors.Is(flagsByIndex[i].err, ErrFlagNotFound):
			res := EvaluationResult{FlagKey: key, Reason: ReasonNotFound}
			e.record(ctx, nil, ectx, res)
			results[key] = res
		case flagsByIndex[i].err != nil:
			e.log.WarnContext(ctx, "flag lookup failed",
				"flag_key", key, "error", flagsByIndex[i].err)
			res := EvaluationResult{FlagKey: key, Reason: ReasonDefault, Metadata: Metadata{Error: true}}
			e.record(ctx, nil, ectx, res)
			results[key] = res
		default:
			results[key] = e.EvaluateFlag(ctx, flagsByIndex[i].flag, ectx, opts...)
		}
	}
	return results
}
