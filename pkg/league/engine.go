package league

import (
	"fmt"
)

// Engine binds a validated Config to the engine operations.
// An Engine holds no other state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// New validates the configuration and returns an Engine using it
func New(cfg Config) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Default returns an Engine using DefaultConfig
func Default() *Engine {
	return &Engine{cfg: DefaultConfig()}
}

// Config returns a copy of the engine's configuration
func (e *Engine) Config() Config {
	return e.cfg
}
