package safe

import (
	"PairLink/logger"
)

// Go starts a goroutine that recovers from panic, so a watcher or
// sweeper blowing up doesn't take the process down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}
