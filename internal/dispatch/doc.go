// Package dispatch turns webhook params into handler calls.
//
// A Dispatcher holds the runtime configuration of the service: the event
// retriever, the optional webhook secret and the subscription registry. All
// of it is read under a lock on every call, so tests and operators can swap
// the retriever, change the secret or Reset the registry between requests.
//
// Instrument runs one webhook end to end:
//
//  1. The retriever resolves params into an event.Event.
//  2. A nil event means the webhook is acknowledged but not dispatched.
//  3. Retriever errors are returned unchanged.
//  4. Subscriptions matching the event topic run one after another in
//     registration order. Each handler is reached through notify.Adapt,
//     called with the namespaced channel, the start time and the event.
//  5. The first handler error stops dispatch and is returned unchanged.
//     Handler panics are not recovered here.
//
// After a successful dispatch one notification is published on the hub
// under the namespaced channel for the topic.
package dispatch
