package types

// Logger is the logging capability every windowmesh component takes at
// construction time. Its method set mirrors the teacher library's logger
// interface so the rest of the core can be read without translation.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	// ToggleDebug enables or disables debug-level output and returns the
	// resulting state.
	ToggleDebug(enabled bool) bool
}
