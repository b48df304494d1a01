package types

// Version is the canonical project version.
// The CLI, the central API envelope and the redis wire format share it.
const Version = "0.3.0"

// EnvelopeVersion is stamped on records published to pub/sub and archive
// destinations so consumers can detect shape changes.
const EnvelopeVersion = Version

// Envelope is the wire shape written by the redis and archive destinations:
// the record's fields plus envelope_version.
type Envelope struct {
	Version string `json:"envelope_version" msgpack:"envelope_version"`
	Record  `msgpack:",inline"`
}

// NewEnvelope wraps a copy of rec stamped with EnvelopeVersion.
func NewEnvelope(rec *Record) Envelope {
	return Envelope{Version: EnvelopeVersion, Record: *rec}
}
