// Package capture records protocol activity (frames in and out, state
// transitions, errors) to compact CBOR capture files, and reads them
// back for analysis.
//
// Records use integer-keyed CBOR for compactness. Recording never
// disrupts the connection: write errors are swallowed, and frame bodies
// above MaxRecordBodySize are truncated in the record.
package capture
