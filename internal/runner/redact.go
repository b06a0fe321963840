package runner

import (
	"regexp"
	"strings"
)

// secretPatterns match known API key and token formats in command output.
// These detect actual credential values, not variable names.
var secretPatterns = []*regexp.Regexp{
	// Anthropic keys: sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	// OpenAI keys: sk-...
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// Groq keys: gsk_...
	regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
	// GitHub personal access tokens
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// Generic long hex tokens (64+ chars) that look like API keys
	regexp.MustCompile(`\b[a-f0-9]{64,}\b`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.]{20,}`),
}

// redactPlaceholder replaces matched secrets in output.
const redactPlaceholder = "[REDACTED]"

// sensitiveEnvNames are env var names whose values must never reach a
// caller: stripped from child environments and redacted from KEY=VALUE
// lines in output.
const sensitiveEnvNames = `RUNGUARD_\w*|OPENAI_\w*|ANTHROPIC_\w*|GROQ_\w*|` +
	`AWS_ACCESS\w*|AWS_SECRET\w*|AWS_SESSION\w*|API_KEY|API_SECRET|` +
	`\w*_TOKEN|\w*_PASSWORD|\w*_SECRET`

var sensitiveEnvName = regexp.MustCompile(`^(` + sensitiveEnvNames + `)$`)

// envKeyValuePattern matches KEY=VALUE lines where KEY is a sensitive env
// var name. This catches output from `set`, `export -p`, `declare -p`, and
// similar shell builtins.
var envKeyValuePattern = regexp.MustCompile(
	`(?im)^(?:declare -x |export )?(` + sensitiveEnvNames + `)[= ].*$`)

// ScanOutput checks command output for leaked secrets and returns a
// redacted copy. The second return value is the number of secrets found.
func ScanOutput(output string) (string, int) {
	count := 0
	result := output
	for _, re := range secretPatterns {
		matches := re.FindAllString(result, -1)
		if len(matches) > 0 {
			count += len(matches)
			result = re.ReplaceAllString(result, redactPlaceholder)
		}
	}
	return result, count
}

// ScanOutputFull runs both secret pattern scanning and env key=value
// scanning.
func ScanOutputFull(output string) (string, int) {
	result, count := ScanOutput(output)

	envMatches := envKeyValuePattern.FindAllString(result, -1)
	if len(envMatches) > 0 {
		count += len(envMatches)
		result = envKeyValuePattern.ReplaceAllString(result, redactPlaceholder)
	}

	// Collapse consecutive redacted lines
	for strings.Contains(result, redactPlaceholder+"\n"+redactPlaceholder) {
		result = strings.ReplaceAll(result, redactPlaceholder+"\n"+redactPlaceholder, redactPlaceholder)
	}

	return result, count
}

// sanitizeEnv filters entries with sensitive names out of an environment
// list.
func sanitizeEnv(env []string) []string {
	clean := make([]string, 0, len(env))
	for _, entry := range env {
		name, _, _ := strings.Cut(entry, "=")
		if sensitiveEnvName.MatchString(name) {
			continue
		}
		clean = append(clean, entry)
	}
	return clean
}
