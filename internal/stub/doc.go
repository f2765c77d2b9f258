// Package stub runs an in-process controller that speaks the wire protocol
// over TLS. Tests use it as the remote end of a real binding; the appctl
// "stub" command serves it for local development.
//
// The server validates the trailing shared secret and argument count before
// dispatch and answers with the protocol sentinels, as a real controller does.
package stub
