// Package physics converts symbolic action codes into deterministic stat
// deltas. The decision service chooses *what* an agent does; this engine
// decides *how much* stats change, so consequences stay consistent and
// auditable.
package physics

import "strings"

// Code is a symbolic action an agent can take in one iteration.
type Code string

const (
	Work    Code = "WORK"
	Trade   Code = "TRADE"
	Rest    Code = "REST"
	Strike  Code = "STRIKE"
	Steal   Code = "STEAL"
	Help    Code = "HELP"
	Invest  Code = "INVEST"
	Consume Code = "CONSUME"
	None    Code = "NONE"
)

var validCodes = map[Code]bool{
	Work: true, Trade: true, Rest: true, Strike: true, Steal: true,
	Help: true, Invest: true, Consume: true, None: true,
}

// Normalize maps a raw string from LLM output onto the closed action
// vocabulary. Case-insensitive; anything unrecognized becomes NONE.
func Normalize(raw string) Code {
	c := Code(strings.ToUpper(strings.TrimSpace(raw)))
	if validCodes[c] {
		return c
	}
	return None
}
