// Package dispatch builds the reply to a qualified lead and hands it to a
// transport.
//
// The reply threads onto the original message (In-Reply-To/References),
// greets the sender by name, and carries the rendered document as an
// attachment. Two transports exist: SMTP for production and an outbox
// directory of .eml files for local runs and tests. The workflow package
// owns the send protocol; this package only composes and sends.
package dispatch
