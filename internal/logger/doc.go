// Package logger wraps zap for the doorwatch binaries:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level and format parsing for configuration values,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services receive a context and log through the logger stored in it, so
// component names and request fields travel with the call chain.
package logger
