// Package notifier delivers reminder messages to a user's messaging identity.
//
// Channel.Send is synchronous: it returns once the transport accepted the
// message or failed. Every attempt is bounded by a timeout and paced by a
// token-bucket limiter so a large pass cannot trip Telegram flood limits.
//
// Failures come back as *DeliveryError, which wraps the transport error and
// records the identity. Successful sends are kept in a small in-memory
// history and published on the event bus.
package notifier
