// Package protocol implements RFC 6455 WebSocket framing.
//
// The package has three parts: the Frame model and its encoder, the masking
// codec, and an incremental Parser that rebuilds frames from a byte stream
// split at arbitrary points.
//
// # Frame Format
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|                Masking-key (32 bits, if MASK set)             |
//	+---------------------------------------------------------------+
//	|                          Payload Data                         |
//	+---------------------------------------------------------------+
//
// # Incremental Parsing
//
// Network reads rarely line up with frame boundaries. A Parser keeps the
// minimum state needed to resume anywhere inside a frame:
//
//	WaitingForHeader -> [WaitingForExtendedLength16 | WaitingForExtendedLength64]
//	                 -> [WaitingForMaskingKey] -> WaitingForPayload -> FrameComplete
//
// Any state can move to Error. The two length states and the masking key
// state accumulate their bytes in a fixed 8-byte scratch array, so a frame
// delivered one byte per read parses exactly like one delivered whole.
//
// Parse reports how many bytes it consumed. Callers drop that prefix from
// their buffer and keep the rest:
//
//	p := protocol.NewParser()
//	for {
//	    frame, n, err := p.Next(buf)
//	    if err != nil {
//	        return err // abort the connection
//	    }
//	    buf = buf[n:]
//	    if frame == nil {
//	        break // need more bytes
//	    }
//	    handle(frame)
//	}
//
// # Validation
//
// The parser rejects, with a *ProtocolError matching ErrProtocolViolation:
//   - RSV1, RSV2 or RSV3 set (no extensions are negotiated)
//   - opcodes other than continuation, text, binary, close, ping and pong
//   - fragmented control frames and control payloads above 125 bytes
//   - extended lengths not in the minimal form, or with the top bit set
//   - payloads above the configured maximum (DefaultMaxPayload)
//
// # Thread Safety
//
// Frame helpers and the masking codec are stateless. A Parser belongs to a
// single connection and must not be shared.
package protocol
