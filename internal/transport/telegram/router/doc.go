// Package router turns inbound Telegram updates into slash-command calls.
//
// Commands are registered by name; DispatchLoop parses "/name@bot args",
// wraps the handler with panic recovery, request logging and a timeout, and
// runs it on a small worker pool.
package router
