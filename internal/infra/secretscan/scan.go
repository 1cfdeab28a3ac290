package secretscan

import (
	"regexp"
	"strings"
)

// Finding is one local detector hit.
type Finding struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Sample         string `json:"sample,omitempty"`
	Recommendation string `json:"recommendation"`
}

// Issue renders the finding the way security_issues entries read.
func (f Finding) Issue() string {
	return f.Title + " (" + f.Severity + "): " + f.Recommendation
}

type detector struct {
	re             *regexp.Regexp
	title          string
	recommendation string
}

var detectors = []detector{
	// Private keys
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "Private key material committed", "Remove private keys from the repository and rotate them."},
	// AWS
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS access key exposed", "Revoke the key and load credentials from an IAM role or secret manager."},
	{regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*["']?[A-Za-z0-9/+=]{20,}`), "AWS secret access key exposed", "Rotate the secret and move it to a secret manager."},
	// GitHub
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), "GitHub token exposed", "Revoke the token and inject it from CI secrets."},
	{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "GitHub PAT exposed", "Revoke the PAT and inject it at runtime."},
	// Google
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "Google API key exposed", "Restrict and rotate the key."},
	// Slack
	{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), "Slack token exposed", "Revoke the token in Slack admin and rotate."},
	// Stripe
	{regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), "Stripe secret key exposed", "Rotate the key and keep it server side."},
	// OpenAI style keys
	{regexp.MustCompile(`(?i)\bsk-[a-z0-9\-_]{20,}`), "Model provider API key exposed", "Revoke the key and read it from the environment."},
	// JWT / bearer
	{regexp.MustCompile(`[A-Za-z0-9-_]{8,}\.eyJ[A-Za-z0-9-_]{5,}\.[A-Za-z0-9-_]{10,}`), "JWT token present", "Do not commit tokens; invalidate the session."},
	{regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?bearer\s+[A-Za-z0-9\-\._~\+\/]+=*`), "Bearer token exposed", "Remove bearer tokens from code and rotate them."},
	// Generic key hints
	{regexp.MustCompile(`(?i)(api[_-]?key|client[_-]?secret|secret|token)\s*[:=]\s*["']?[^\s"']{12,}`), "Sensitive credential literal detected", "Do not hardcode secrets; use environment variables or a secret manager."},
	// URL with basic auth
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "Credentials embedded in URL", "Strip credentials from URLs and pass them via configuration."},
}

var passwordField = regexp.MustCompile(`(?i)password\s*:`)

// Scan inspects content for committed secrets and a few config smells.
// path is only used to recognise config files. Results are capped at 20.
func Scan(path, content string) []Finding {
	lower := strings.ToLower(content)
	findings := make([]Finding, 0, 4)
	seen := map[string]bool{}

	for _, d := range detectors {
		match := d.re.FindString(content)
		if match == "" || seen[d.title] {
			continue
		}
		seen[d.title] = true
		findings = append(findings, Finding{
			Title:          d.title,
			Severity:       "critical",
			Sample:         redact(match),
			Recommendation: d.recommendation,
		})
	}

	if strings.Contains(lower, "http://") && strings.Contains(lower, "api") {
		findings = append(findings, Finding{
			Title:          "Insecure HTTP reference",
			Severity:       "medium",
			Recommendation: "Prefer HTTPS for API endpoints.",
		})
	}

	if isConfigFile(path) {
		if strings.Contains(lower, "use_ssl: false") || strings.Contains(lower, "usessl: false") {
			findings = append(findings, Finding{
				Title:          "SSL/TLS disabled in config",
				Severity:       "high",
				Recommendation: "Enable TLS and certificate validation.",
			})
		}
		if len(seen) == 0 && passwordField.MatchString(content) {
			findings = append(findings, Finding{
				Title:          "Password field present",
				Severity:       "low",
				Recommendation: "Load passwords from the environment or a secret manager.",
			})
		}
	}

	if len(findings) > 20 {
		findings = findings[:20]
	}
	return findings
}

func isConfigFile(path string) bool {
	p := strings.ToLower(path)
	for _, ext := range []string{".yml", ".yaml", ".json", ".env", ".ini", ".toml"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// redact keeps a short prefix so the finding is recognisable without leaking the secret.
func redact(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:6] + strings.Repeat("*", 6)
}

// Issues renders Scan results as security_issues strings.
func Issues(path, content string) []string {
	fs := Scan(path, content)
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Issue())
	}
	return out
}
