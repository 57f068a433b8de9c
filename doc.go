// Package seymour is a client for Seymour motorized masking screen
// controllers.
//
// A Client talks the controller's RS232 protocol either through a local serial
// port or through a TCP-to-serial bridge such as the Global Caché iTach
// IP2SL:
//
//	ep, _ := transport.ParseEndpoint("tcp://192.168.1.70")
//	c, err := seymour.Connect(ctx, ep)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	res, err := c.ApplyPreset(ctx, 178)
//
// Motion commands are not acknowledged by the controller. The client sends
// them, waits a short settle delay and then polls the status until the screen
// reports HALTED or STOPPED_AT_RATIO, an ERROR, or the motion timeout passes.
//
// All calls on one Client share a single link and are executed one at a
// time in arrival order.
package seymour
