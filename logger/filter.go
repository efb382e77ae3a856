package logger

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field name fragments that should be masked.
	// Matching is case-insensitive and by substring.
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a configuration covering credentials that
// commonly travel in HTTP requests.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"api_key", "apikey", "x-api-key",
			"token", "authorization", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach the log writer.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. URLs keep their structure
// with only the password replaced.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if isURL(value) {
		return f.maskURL(value)
	}
	if f.isSensitiveField(key) && value != "" {
		return f.config.MaskValue
	}
	return value
}

// FilterValue masks value when key is sensitive and descends into string maps
// and http.Header values.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]any:
		return f.FilterFields(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case http.Header:
		return f.FilterHeader(v)
	default:
		return value
	}
}

// FilterFields filters every entry of a field map.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

// FilterHeader flattens h into a loggable map with sensitive headers masked.
func (f *SensitiveDataFilter) FilterHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = f.FilterString(name, strings.Join(values, ", "))
	}
	return out
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// maskURL replaces the password in URL user info and masks sensitive query parameters.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for name := range q {
			if f.isSensitiveField(name) {
				q.Set(name, f.config.MaskValue)
				changed = true
			}
		}
		if changed {
			parsed.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	return parsed.String()
}
