// Package shutdown delivers OS termination signals with the right set
// per platform.
package shutdown

import "os"

// Handle runs fn once on the first termination signal.
func Handle(fn func()) {
	ch := make(chan os.Signal, 1)
	Notify(ch)
	go func() {
		<-ch
		fn()
	}()
}
