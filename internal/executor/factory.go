package executor

import (
	"fmt"

	"agentherd/pkg/models"
)

// New builds the executor implementation for one configured backend
// instance. Backend kinds are dispatched at configuration-load time; the
// lifecycle engine only ever sees the Executor interface.
func New(cfg models.ExecutorConfig, defaults models.Defaults) (Executor, error) {
	switch cfg.Type {
	case models.ExecutorSSH:
		return newSSHExecutor(cfg, defaults)
	case models.ExecutorContainer:
		return newContainerExecutor(cfg, defaults)
	case models.ExecutorLocal:
		return newLocalExecutor(cfg, defaults), nil
	default:
		return nil, fmt.Errorf("unknown executor type %q for %s", cfg.Type, cfg.Name)
	}
}
