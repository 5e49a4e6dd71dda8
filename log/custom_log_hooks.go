package log

// Hook receives every message that passes its sub logger's level filter.
// Returning true keeps the message away from the zap cores.
type Hook func(header, subLogger, msg string) (handled bool)

var customLogHook Hook

// SetCustomLogHook installs h in front of every sub logger, nil removes it
func SetCustomLogHook(h Hook) {
	mu.Lock()
	customLogHook = h
	mu.Unlock()
}
