// Package schema defines the record types exchanged between clients, the
// storage domain layer, and the job pipeline: job payloads, status records,
// result records, and backend configuration.
//
// All records serialize as JSON; timestamps are ISO-8601 strings. The shapes
// follow the established wire format of the platform, so field names and
// their casing are load-bearing.
package schema
