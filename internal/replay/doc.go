// The tick-record encoder in encode.go is hand-rolled over
// github.com/joeycumines/go-utilpkg/jsonenc rather than encoding/json: it
// runs once per tick for the lifetime of a run, and the ordering/atomicity
// guarantees in spec.md §4.4/§5 ("a single write call when possible") are
// easiest to reason about when the engine controls every byte appended.
//
// The header's nested config object is the one exception: it is built once
// per run, not once per tick, so encoding/json's reflection cost is
// irrelevant and its deterministic, field-declaration-order encoding of the
// nested weights struct comes for free.
package replay

import (
	"encoding/json"

	"github.com/libertaine/battle2/internal/config"
)

// appendConfig marshals cfg with encoding/json and appends the result to
// dst. Marshal never fails for config.Config (no channels, funcs, or
// cyclic structures), so an error here would indicate a programming
// mistake, not a runtime condition to recover from.
func appendConfig(dst []byte, cfg config.Config) []byte {
	b, err := json.Marshal(cfg)
	if err != nil {
		panic("replay: config.Config is not JSON-marshalable: " + err.Error())
	}
	return append(dst, b...)
}
