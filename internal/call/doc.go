// Package call runs controller invocations under a per-call deadline and
// decides, for each failed attempt, whether to retry, surface, or reject.
//
// A sentinel response from the controller (bad secret, invalid request) ends
// the call immediately. Transport faults are retried after a pause when the
// descriptor allows it, until the call succeeds or its deadline passes. Every
// failure is returned as a *FailedNode.
package call
