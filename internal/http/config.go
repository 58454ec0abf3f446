package http

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Books    BookStore
	Reader   ReaderSessions
	Chat     ChatService
	Diagrams DiagramService
	Settings ProviderSettings

	// Database backing the records, nil for the file backend
	Database Pinger

	// Model used when a request names none
	DefaultModel string

	// Caps chat and diagram requests per client (optional)
	ModelLimiter *RateLimiter

	// Task queue (optional)
	Tasks TaskQueue

	// Application info
	Version string
}
