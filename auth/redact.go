package auth

// Redact hides a token for logging, keeping only a short prefix for correlation.
func Redact(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED_TOKEN]"
	}
	return token[:4] + "...[REDACTED_TOKEN]"
}
