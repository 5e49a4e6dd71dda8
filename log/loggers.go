package log

import "fmt"

const (
	infoHeader  = "[INFO]"
	warnHeader  = "[WARN]"
	debugHeader = "[DEBUG]"
	errorHeader = "[ERROR]"
)

// Info takes a pointer subLogger struct and string sends to StageLogEvent
func Info(sl *SubLogger, data string) {
	stage(sl, infoHeader, func() string { return data })
}

// Infoln takes a pointer subLogger struct and interface sends to StageLogEvent
func Infoln(sl *SubLogger, v ...any) {
	stage(sl, infoHeader, func() string { return fmt.Sprint(v...) })
}

// Infof takes a pointer subLogger struct, string and interface formats sends to StageLogEvent
func Infof(sl *SubLogger, data string, v ...any) {
	stage(sl, infoHeader, func() string { return fmt.Sprintf(data, v...) })
}

// Debug takes a pointer subLogger struct and string sends to StageLogEvent
func Debug(sl *SubLogger, data string) {
	stage(sl, debugHeader, func() string { return data })
}

// Debugln takes a pointer subLogger struct, string and interface sends to StageLogEvent
func Debugln(sl *SubLogger, v ...any) {
	stage(sl, debugHeader, func() string { return fmt.Sprint(v...) })
}

// Debugf takes a pointer subLogger struct, string and interface formats sends to StageLogEvent
func Debugf(sl *SubLogger, data string, v ...any) {
	stage(sl, debugHeader, func() string { return fmt.Sprintf(data, v...) })
}

// Warn takes a pointer subLogger struct & string and sends to StageLogEvent
func Warn(sl *SubLogger, data string) {
	stage(sl, warnHeader, func() string { return data })
}

// Warnln takes a pointer subLogger struct & interface formats and sends to StageLogEvent
func Warnln(sl *SubLogger, v ...any) {
	stage(sl, warnHeader, func() string { return fmt.Sprint(v...) })
}

// Warnf takes a pointer subLogger struct, string and interface formats sends to StageLogEvent
func Warnf(sl *SubLogger, data string, v ...any) {
	stage(sl, warnHeader, func() string { return fmt.Sprintf(data, v...) })
}

// Error takes a pointer subLogger struct & interface formats and sends to StageLogEvent
func Error(sl *SubLogger, data string) {
	stage(sl, errorHeader, func() string { return data })
}

// Errorln takes a pointer subLogger struct, string & interface formats and sends to StageLogEvent
func Errorln(sl *SubLogger, v ...any) {
	stage(sl, errorHeader, func() string { return fmt.Sprint(v...) })
}

// Errorf takes a pointer subLogger struct, string and interface formats sends to StageLogEvent
func Errorf(sl *SubLogger, data string, v ...any) {
	stage(sl, errorHeader, func() string { return fmt.Sprintf(data, v...) })
}

// enabled checks if the log level is enabled
func (sl *SubLogger) enabled(header string) bool {
	switch header {
	case infoHeader:
		return sl.levels.Info
	case warnHeader:
		return sl.levels.Warn
	case errorHeader:
		return sl.levels.Error
	case debugHeader:
		return sl.levels.Debug
	}
	return false
}

// stage formats lazily so disabled levels cost nothing
func stage(sl *SubLogger, header string, data func() string) {
	if sl == nil {
		return
	}
	mu.RLock()
	defer mu.RUnlock()
	if !sl.enabled(header) {
		return
	}
	msg := data()
	if customLogHook != nil && customLogHook(header, sl.name, msg) {
		return
	}
	switch header {
	case infoHeader:
		sl.logger.Info(msg)
	case warnHeader:
		sl.logger.Warn(msg)
	case errorHeader:
		sl.logger.Error(msg)
	case debugHeader:
		sl.logger.Debug(msg)
	}
}
