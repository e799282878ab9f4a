package p64

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/pkg/errors"
)

// Reporter receives constructor-validation failures: a module name, a
// human message, and the offending value. The default reporter logs via
// the package logger; tests typically install their own to assert on
// what was reported instead of scraping log output.
type Reporter func(module, message string, value any)

var reporter Reporter = defaultReporter

// SetReporter overrides the package-wide validation reporter.
func SetReporter(r Reporter) {
	if r == nil {
		r = defaultReporter
	}
	reporter = r
}

func defaultReporter(module, message string, value any) {
	err := errors.Wrapf(fmt.Errorf("%s", message), "p64: %s", module)
	logger().Sugar().Errorw("validation error", "module", module, "value", value, "error", err)
}

func reportError(module, message string, value any) {
	reporter(module, message, value)
}

// fatalMisuse logs the offending address/value and terminates the
// process. It is the idiomatic-Go stand-in for the C sources' abort():
// a caller bug here (double release, releasing more readers than were
// acquired) cannot be recovered from and must not be swallowed by a
// deferred recover(). Freeing a non-empty ring is not routed here:
// RingBuffer.Free reports it through the Reporter and returns false.
func fatalMisuse(module, message string, value any) {
	logger().Sugar().Errorw("fatal misuse, aborting", "module", module, "value", value, "message", message)
	debug.PrintStack()
	os.Exit(2)
}
