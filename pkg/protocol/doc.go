// Package protocol defines the auditor's two wire formats.
//
// Musicians send one JSON announcement per UDP datagram:
//
//	{"id":"<uuid>","sound":"ti-ta-ti","instrument":"piano","activeSince":"2024-03-01T10:00:00Z"}
//
// Older musicians name the identifier "uuid" instead of "id"; both are
// accepted. sound may be any JSON value and activeSince any JSON string or
// number; both are carried through untouched.
//
// A query connection receives one JSON array of the active musicians,
// terminated by "\r\n":
//
//	[{"id":"<uuid>","instrument":"piano","activeSince":"2024-03-01T10:00:00Z"}]
package protocol
