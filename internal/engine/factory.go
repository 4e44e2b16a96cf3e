package engine

import (
	"sentiment-trading/internal/interfaces"
)

func New(cfg Config, deps Deps, opts ...Option) interfaces.Engine {
	return newEngine(cfg, deps, opts...)
}
