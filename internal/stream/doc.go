// Package stream keeps a server-sent events subscription to a location of
// the remote tree open and turns its frames into change events.
//
// A Subscription moves through the states Connecting, Streaming,
// Reconnecting and Terminated. put and patch frames are merged into the
// subscription's Merger; every element the merge reports as changed is
// delivered on Events with SourceOnlineStream. A cancel frame terminates
// the subscription with ErrCancelled. auth_revoked reconnects with a fresh
// token. Connection failures are passed to the ErrorHandler, which decides
// whether the subscription reconnects after the next backoff delay or
// terminates. Every established stream starts a fresh backoff.
//
//	sub := stream.Subscribe[Message](ctx, transport, query, cache, stream.Options{}, log)
//	defer sub.Close()
//	for ev := range sub.Events() {
//		...
//	}
//	if err := sub.Err(); err != nil {
//		...
//	}
package stream
