// Package transport provides the byte-level duplex channel to a Seymour
// masking controller.
//
// Two implementations share the Transport interface: TCPTransport talks to a
// TCP-to-serial bridge (an iTach IP2SL class device exposes the controller's
// RS232 port as raw TCP on port 4999) and SerialTransport opens a local serial
// device at the controller's fixed 115200 8N1 line settings.
//
// A Transport delivers bytes in order but does not preserve message boundaries:
// a single ReadAvailable call may return nothing, part of a frame or several
// frames. Framing is the job of the protocol package. Transports hold no locks
// around exchanges; serialization happens in the link package.
package transport
