package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
// They match the request headers the browser can be configured to send.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"cookies":             true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"token":               true,
	"session":             true,
}

// headerKeys are attribute keys that hold a whole header set. Only the
// sensitive entries inside them are masked.
var headerKeys = map[string]bool{
	"headers":       true,
	"extra_headers": true,
}

// sensitivePatterns match values that are credentials whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// minSecretLen is the shortest literal secret that is masked inside
// other strings. Shorter values would mask ordinary words.
const minSecretLen = 4

// SecureHandler wraps an slog.Handler to keep request credentials out of
// the log. It masks attributes by key and by value pattern, and masks the
// literal secrets it was given wherever they appear: in string values, in
// error messages and in the record message itself.
//
// Design decision: The cookie and header values a site is configured with
// are registered as literal secrets, because navigation errors returned by
// the browser can echo request headers back inside their message.
type SecureHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler, secrets ...string) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}

	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) >= minSecretLen && !slices.Contains(kept, s) {
			kept = append(kept, s)
		}
	}
	// Longest first so a secret containing another is masked whole.
	slices.SortFunc(kept, func(a, b string) int { return len(b) - len(a) })

	return &SecureHandler{handler: handler, secrets: kept}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.redact(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs), secrets: h.secrets}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		return slog.String(a.Key, h.redact(s))
	case slog.KindAny:
		return h.sanitizeAny(a, headerKeys[key])
	default:
		return a
	}
}

// sanitizeAny handles header sets and errors.
func (h *SecureHandler) sanitizeAny(a slog.Attr, isHeaders bool) slog.Attr {
	switch v := a.Value.Any().(type) {
	case map[string]string:
		return slog.Any(a.Key, h.sanitizeHeaders(v))
	case http.Header:
		flat := make(map[string]string, len(v))
		for k, vals := range v {
			flat[k] = strings.Join(vals, ", ")
		}
		return slog.Any(a.Key, h.sanitizeHeaders(flat))
	case error:
		return slog.String(a.Key, h.redact(v.Error()))
	case fmt.Stringer:
		if isHeaders {
			return slog.String(a.Key, MaskValue)
		}
		return slog.String(a.Key, h.redact(v.String()))
	default:
		if isHeaders {
			return slog.String(a.Key, MaskValue)
		}
		return a
	}
}

// sanitizeHeaders returns a copy of headers with sensitive entries masked.
func (h *SecureHandler) sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] || isSensitiveValue(v) {
			out[k] = MaskValue
			continue
		}
		out[k] = h.redact(v)
	}
	return out
}

// redact replaces every registered secret in s with MaskValue.
func (h *SecureHandler) redact(s string) string {
	for _, secret := range h.secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, MaskValue)
		}
	}
	return s
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// CookieSecrets splits a Cookie header into the literal values to mask:
// the whole header and the value of each name=value pair.
func CookieSecrets(cookie string) []string {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return nil
	}

	secrets := []string{cookie}
	for pair := range strings.SplitSeq(cookie, ";") {
		_, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && value != "" {
			secrets = append(secrets, value)
		}
	}
	return secrets
}

// NewSecureLogger creates a text slog.Logger that masks credentials.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//   - secrets: literal values (cookie, header values) to mask anywhere
func NewSecureLogger(w io.Writer, verbose bool, secrets ...string) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose)), secrets...))
}

// NewSecureJSONLogger creates a JSON slog.Logger that masks credentials.
func NewSecureJSONLogger(w io.Writer, verbose bool, secrets ...string) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), secrets...))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
