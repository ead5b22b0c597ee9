package ports

// RequestListener is the transport surface that feeds requests into the
// router. Implementations run their own accept loop.
type RequestListener interface {
	// Start begins accepting requests. It returns once the listener is
	// running.
	Start() error

	// Stop shuts the listener down gracefully.
	Stop() error
}
