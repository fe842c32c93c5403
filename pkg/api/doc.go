// Package api defines the core protocol types shared by every chorus
// component: conversation messages, render fragments, the turn state
// machine, ID generation, and the normalized error taxonomy.
//
// The package performs no I/O. Provider adapters translate backend payloads
// into these types before anything else in the system sees them.
//
// Core types:
//   - [Message]: one committed conversation entry (user, assistant, system, function)
//   - [Fragment]: display-agnostic unit of turn output handed to a render sink
//   - [TurnState]: per-turn coordinator state with validated transitions
//   - [Error]: normalized failure with a closed [ErrorKind] taxonomy
package api
