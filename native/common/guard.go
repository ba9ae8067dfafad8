package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned by Guard when the admin pause switch is set for
// a module. Callers match with errors.Is.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the admin-maintained pause switches to native engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutating calls into a paused module. A nil view means no
// pause configuration is wired, which reads as unpaused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
