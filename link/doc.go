// Package link owns the physical link to one controller and runs
// request/response exchanges over it.
//
// A Session admits one exchange at a time, in arrival order. Each exchange
// drains stale input left by an abandoned predecessor, writes the command and
// reads until the first complete reply frame or the exchange deadline. Failed
// exchanges are retried with exponential backoff; transport failures tear the
// link down and the next exchange reconnects it.
package link
