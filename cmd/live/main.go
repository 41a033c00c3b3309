// Binary live is intentionally left as a stub to avoid accidental live
// trading while the signed order path is still being wired.
package main

import (
	"log"
)

func main() {
	// Intentionally minimal; run cmd/engine with gateway.live_orders=false instead.
	log.Println("live stub - enable live_orders in the engine config once request signing lands")
}
