package types

// Version is the canonical project version.
// The CLI, the notification payloads and the archive records share it.
const Version = "0.3.0"

// ContractVersion is stamped on published events and archive records.
const ContractVersion = Version

// ProtocolVersion identifies the wire format spoken by server and client.
//
// Version 1 used an unframed error tail and, in some builds, a fixed two-file
// envelope without a unit count. Version 2 always sends a unit count and
// length-frames both response kinds.
const ProtocolVersion = 2
