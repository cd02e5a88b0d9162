package executor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"agentherd/pkg/models"
)

// shellQuote wraps s in single quotes, escaping embedded single quotes, so
// it survives one level of sh parsing.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// innerCommand renders the command a task actually runs: either the coding
// agent invocation built from the prompt, or the raw shell command.
func innerCommand(spec LaunchSpec, agentBin string) string {
	if spec.Type == models.TaskTypeShell {
		return "sh -c " + shellQuote(spec.Command)
	}

	var sb strings.Builder
	sb.WriteString(agentBin)
	sb.WriteString(" --print --output-format json -p ")
	sb.WriteString(shellQuote(spec.Prompt))
	if spec.MaxTurns > 0 {
		fmt.Fprintf(&sb, " --max-turns %d", spec.MaxTurns)
	}
	for _, tool := range spec.AllowedTools {
		sb.WriteString(" --allowedTools ")
		sb.WriteString(shellQuote(tool))
	}
	return sb.String()
}

// envPrefix renders config env vars as VAR='val' assignments prefixed to a
// shell command. Keys are sorted so the rendered command is deterministic.
func envPrefix(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(shellQuote(env[k]))
		sb.WriteString(" ")
	}
	return sb.String()
}

// workspaceToken renders the cd target for the detached wrapper. An empty
// workspace becomes a bare tilde so the wrapper shell expands it to the
// backend user's home; caller-supplied paths are quoted and taken literally.
func workspaceToken(workspace string) string {
	if workspace == "" {
		return "~"
	}
	return shellQuote(workspace)
}

// detachedWrapper wraps inner in a nohup'd subshell that redirects output
// to logPath, records the exit code in exitPath, and writes the wrapper pid
// to pidPath. The spawned process is detached from the invoking session and
// survives its disconnection. workspace must already be a shell token, see
// workspaceToken.
func detachedWrapper(workspace, env, inner, logPath, exitPath, pidPath string) string {
	body := fmt.Sprintf("cd %s && %s%s > %s 2>&1; echo $? > %s",
		workspace, env, inner, shellQuote(logPath), shellQuote(exitPath))
	return fmt.Sprintf("nohup sh -c %s </dev/null >/dev/null 2>&1 & echo $! > %s",
		shellQuote(body), shellQuote(pidPath))
}

// parsePSUsage parses `ps -o %cpu=,rss=` output for a single pid.
func parsePSUsage(out string) *models.ResourceUsage {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 {
		return nil
	}
	cpu, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	rss, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil
	}
	return &models.ResourceUsage{CPUPercent: cpu, RSSKB: rss}
}

// tailRecords converts raw log text into the last n structured output
// records, numbered by line position within the full text.
func tailRecords(text string, n int) []models.OutputRecord {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	start := 0
	if n > 0 && len(lines) > n {
		start = len(lines) - n
	}

	records := make([]models.OutputRecord, 0, len(lines)-start)
	for i := start; i < len(lines); i++ {
		records = append(records, models.OutputRecord{Line: i + 1, Text: lines[i]})
	}
	return records
}

// parseExitCode parses the contents of an exit code sentinel file.
func parseExitCode(raw string) (int, bool) {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return code, true
}
