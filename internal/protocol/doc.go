// Package protocol owns the controller wire contract.
//
// Ownership boundary:
// - request/response envelopes (one JSON object per line, one request per connection)
// - the remote operation catalog
// - daemon sentinel responses shared by clients and any transport substitute
// - payload shapes for structured results
package protocol
