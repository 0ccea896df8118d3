// Package recorder captures transport events to CBOR files and reads them
// back for replay.
//
// A capture file is a plain sequence of CBOR-encoded Records, one per
// transport event, appended as they happen:
//
//	{"received": <RFC3339 time>, "kind": "open"|"message"|"close",
//	 "conn_id": "<uuid>", "frame": <bytes>}
//
// Files are named capture-YYYYMMDD-HHMMSS.cbor after the time they were
// created. Because records are self-delimiting, a capture cut short by a
// crash is readable up to its last complete record.
package recorder
