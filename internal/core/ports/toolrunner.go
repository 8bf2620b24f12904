package ports

import "context"

// ToolResult is the outcome of one external tool invocation. Stdout and
// Stderr are bounded at capture time; a stream that overran the cap ends
// with a truncation marker.
type ToolResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ToolRunner executes an external tool in a working directory and reports
// its exit code and captured output. A non-zero exit is a normal result,
// not an error; the error return is reserved for failures to run the tool
// at all (binary missing, context expired, process killed).
//
// Tests substitute a fake runner to simulate tool success, failure, and
// hangs without invoking real tooling.
type ToolRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (ToolResult, error)
}
