// Package log provides a slog handler that keeps request credentials out of
// recipescan's log output.
//
// The crawler can be configured with a cookie and extra HTTP headers per
// site. The SecureHandler masks:
//   - attributes named after credential headers (Authorization, Cookie, ...)
//   - credential entries inside header maps
//   - values that look like bearer, basic or JWT tokens
//   - registered literal secrets wherever they appear, including error
//     messages and the log message itself
//
// # Usage
//
//	site := cfg.Site()
//	secrets := log.CookieSecrets(site.Cookie)
//	for _, v := range site.Headers {
//	    secrets = append(secrets, v)
//	}
//	logger := log.NewSecureLogger(os.Stderr, verbose, secrets...)
//	slog.SetDefault(logger)
package log
