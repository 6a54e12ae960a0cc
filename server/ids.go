package server

import (
	"fmt"
	"sync/atomic"
	"time"
)

// idCounter backs the process-wide monotonic component of a server id
// (spec §3: "unique id (process-wide monotonic counter + timestamp
// suffix)").
var idCounter atomic.Uint64

// nextID returns a new, process-wide unique server id.
func nextID() string {
	n := idCounter.Add(1)
	return fmt.Sprintf("%d-%d", n, time.Now().UnixNano())
}
