// Package connection keeps one push connection to the alert stream alive.
//
// A Manager owns the socket, the reconnect timer and a single event-loop
// goroutine. Socket open, close and error, frame arrival and timer expiry
// are posted to that loop and handled one at a time, so message handlers
// and state observers never run concurrently with each other.
//
// # Reconnection
//
// When an open connection closes or errors, or a dial fails, the manager
// moves to RECONNECTING and dials a brand-new connection after a fixed
// delay (3s by default). There is no backoff growth and no retry limit;
// retries continue until Stop.
//
// # Teardown
//
// Stop is terminal. It cancels the pending reconnect timer, closes the
// socket, and waits for every goroutine the manager started.
package connection
