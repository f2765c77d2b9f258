// Package transport owns the encrypted channel to a controller.
//
// Ownership boundary:
// - dialing and TLS setup (certificate verification off unless a CA is pinned)
// - one request/response exchange per connection
// - classification of network and TLS failures into Fault kinds
// - retry pause timing shared with the call layer
//
// It never interprets results and never retries; that is the call layer's job.
package transport
