package sim

import "github.com/rustyeddy/backsim/broker"

// The simulated venue satisfies the same adapter contract live exchange
// adapters implement.
var _ broker.Adapter = (*Venue)(nil)
