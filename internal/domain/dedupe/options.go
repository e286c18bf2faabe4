package dedupe

const defaultMaxSize = 10000

// Option configures the in-memory deduper.
type Option func(*window)

// WithMaxSize bounds how many submission ids are remembered.
// Zero or negative keeps every id.
func WithMaxSize(maxSize int) Option {
	return func(w *window) {
		w.maxSize = maxSize
	}
}
