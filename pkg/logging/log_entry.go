package logging

// LogEntry represents a structured log record.
type LogEntry struct {
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// General structured data, filled from the logger's default fields.
	Fields map[string]interface{}
}
