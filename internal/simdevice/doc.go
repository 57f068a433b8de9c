// Package simdevice simulates a Seymour masking controller for tests.
//
// A Screen answers frames according to a script. It can be driven in memory
// through Device, which implements transport.Transport and records every
// frame crossing the link, or served over a real socket with Serve.
package simdevice
