// Package webhook is the HTTP boundary for Intercom webhook notifications.
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path (default /webhook)
//  2. If a secret is configured, the HTTP Basic password must equal it
//     (username ignored); otherwise 401 and nothing is dispatched
//  3. Body size checked (413 if too large)
//  4. Optional HMAC check of the body against the signature header
//  5. Query, form and JSON body fields merged into event.Params
//  6. The dispatcher resolves and routes the event
//
// # Responses
//
//   - 200, empty body: dispatched, or ignored by the retriever
//   - 401, empty body: missing or wrong credential, bad signature, or an
//     unauthorized retrieval (logged with its full error chain)
//   - anything else: the configured ErrorHandler decides; the default logs
//     the error and answers 500. Handler failures are never reported as 401.
//
// GET /healthz answers {"status":"ok"}. When a hub is attached, GET /events
// streams dispatch notifications as server-sent events behind the same
// credential check.
//
// # Configuration
//
//	webhook:
//	  listen: "127.0.0.1:8081"
//	  path: /webhook
//	  secret: ${INTERCOM_WEBHOOK_SECRET}
//	  signing_secret: ${INTERCOM_CLIENT_SECRET}
//	  signature_header: X-Hub-Signature
//	  max_body_size: 1MB
package webhook
