// Package query evaluates JSONPath expressions against model snapshots.
//
// Expressions run over the snapshot's JSON projection, so paths use its
// snake_case keys and each stored message appears with its message,
// timestamp and local_timestamp fields:
//
//	$.winches[*].local_timestamp
//	$.gimbal_values['1']['3'].message.GimbalValue[0].value
//	$.camera.outputs.message
package query
