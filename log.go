package p64

import "go.uber.org/zap"

var pkgLogger *zap.Logger

func logger() *zap.Logger {
	if pkgLogger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		pkgLogger = l
	}
	return pkgLogger
}

// SetLogger replaces the package-wide zap logger used for validation
// reports and fatal-misuse diagnostics. Passing nil restores the
// default production logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		pkgLogger = nil
		return
	}
	pkgLogger = l
}
