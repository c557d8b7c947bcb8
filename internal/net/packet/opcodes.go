package packet

// Server -> viewer.
const (
	S_OPCODE_HELLO       byte = 0x01 // protocol version, server name
	S_OPCODE_ZONEINFO    byte = 0x02 // immutable light data of the active zone
	S_OPCODE_LIGHTFRAME  byte = 0x03 // per-frame visibility and intensity
	S_OPCODE_ZONERELEASE byte = 0x04 // active zone dropped, forget its lights
)

// Viewer -> server.
const (
	C_OPCODE_SUBSCRIBE byte = 0x40 // start streaming frames; flags byte
	C_OPCODE_PAUSE     byte = 0x41 // stop frames, keep zone updates
)

// ProtocolVersion is sent in S_OPCODE_HELLO.
const ProtocolVersion = 1
