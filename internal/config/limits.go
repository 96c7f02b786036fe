package config

import "fmt"

// EngineLimits collects the scheduling and traversal bounds named in §5
// (concurrency/resource model). Only Validate reads them, and nothing calls
// Validate: the scheduler and GraphStore use their own constants (batch
// size 20, depth cap 3).
type EngineLimits struct {
	// SchedulerYieldBatchSize bounds how many items a timer processes before
	// yielding the KV write lock (§5: "must not hold the KV write lock for
	// more than a batch before yielding").
	SchedulerYieldBatchSize int `yaml:"scheduler_yield_batch_size" json:"scheduler_yield_batch_size"`

	// MaxTraversalDepthHardCap is the absolute ceiling on GraphStore.connected,
	// regardless of what graph.max_traversal_depth requests (§4.5: hard cap 3).
	MaxTraversalDepthHardCap int `yaml:"max_traversal_depth_hard_cap" json:"max_traversal_depth_hard_cap"`

	// MaxConcurrentLLMCalls is a bound on simultaneous Embedder/Chat/Classifier
	// calls; no call site enforces it.
	MaxConcurrentLLMCalls int `yaml:"max_concurrent_llm_calls" json:"max_concurrent_llm_calls"`
}

func DefaultEngineLimits() EngineLimits {
	return EngineLimits{
		SchedulerYieldBatchSize:  20,
		MaxTraversalDepthHardCap: 3,
		MaxConcurrentLLMCalls:    4,
	}
}

// Validate checks that engine limits are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Limits.SchedulerYieldBatchSize < 1 {
		return fmt.Errorf("scheduler_yield_batch_size must be >= 1")
	}
	if c.Limits.MaxTraversalDepthHardCap < 1 {
		return fmt.Errorf("max_traversal_depth_hard_cap must be >= 1")
	}
	if c.Graph.MaxTraversalDepth > c.Limits.MaxTraversalDepthHardCap {
		return fmt.Errorf("graph.max_traversal_depth (%d) exceeds hard cap (%d)", c.Graph.MaxTraversalDepth, c.Limits.MaxTraversalDepthHardCap)
	}
	return nil
}
