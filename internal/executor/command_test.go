package executor

import (
	"strings"
	"testing"

	"agentherd/pkg/models"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"", "''"},
		{"$HOME; rm -rf /", `'$HOME; rm -rf /'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInnerCommand_Agent(t *testing.T) {
	spec := LaunchSpec{
		Type:         models.TaskTypeAgent,
		Prompt:       "fix the bug",
		MaxTurns:     50,
		AllowedTools: []string{"Edit", "Bash"},
	}
	got := innerCommand(spec, "claude")

	want := "claude --print --output-format json -p 'fix the bug' --max-turns 50 --allowedTools 'Edit' --allowedTools 'Bash'"
	if got != want {
		t.Errorf("innerCommand =\n  %s\nwant\n  %s", got, want)
	}
}

func TestInnerCommand_AgentWithoutOptions(t *testing.T) {
	spec := LaunchSpec{Type: models.TaskTypeAgent, Prompt: "hello"}
	got := innerCommand(spec, "claude")

	if strings.Contains(got, "--max-turns") {
		t.Errorf("zero max turns should be omitted: %s", got)
	}
	if strings.Contains(got, "--allowedTools") {
		t.Errorf("no tools should be omitted: %s", got)
	}
}

func TestInnerCommand_Shell(t *testing.T) {
	spec := LaunchSpec{Type: models.TaskTypeShell, Command: "make test && echo ok"}
	got := innerCommand(spec, "claude")

	want := "sh -c 'make test && echo ok'"
	if got != want {
		t.Errorf("innerCommand = %s, want %s", got, want)
	}
}

func TestEnvPrefix_SortedAndQuoted(t *testing.T) {
	env := map[string]string{
		"ZEBRA": "last",
		"ALPHA": "first value",
	}
	got := envPrefix(env)

	want := "ALPHA='first value' ZEBRA='last' "
	if got != want {
		t.Errorf("envPrefix = %q, want %q", got, want)
	}
	if envPrefix(nil) != "" {
		t.Error("empty env should render nothing")
	}
}

func TestWorkspaceToken(t *testing.T) {
	// An empty workspace must stay an unquoted tilde so the wrapper shell
	// expands it to the backend user's home. Quoting it would make cd look
	// for a directory literally named "~".
	if got := workspaceToken(""); got != "~" {
		t.Errorf("workspaceToken(\"\") = %s, want ~", got)
	}
	if got := workspaceToken("/srv/work space"); got != "'/srv/work space'" {
		t.Errorf("workspaceToken = %s, want quoted path", got)
	}
	if got := workspaceToken("~"); got != "'~'" {
		t.Errorf("workspaceToken = %s; a caller-supplied tilde is a literal name", got)
	}
}

func TestDetachedWrapper(t *testing.T) {
	got := detachedWrapper(workspaceToken("/work"), "", "echo hi", "/t/out.log", "/t/exit.code", "/t/agent.pid")

	for _, fragment := range []string{
		"nohup sh -c",
		"cd '/work' && echo hi > '/t/out.log' 2>&1; echo $? > '/t/exit.code'",
		"</dev/null >/dev/null 2>&1 &",
		"echo $! > '/t/agent.pid'",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("wrapper missing %q:\n%s", fragment, got)
		}
	}
}

func TestDetachedWrapper_DefaultWorkspace(t *testing.T) {
	got := detachedWrapper(workspaceToken(""), "", "echo hi", "/t/out.log", "/t/exit.code", "/t/agent.pid")

	if !strings.Contains(got, "cd ~ && echo hi") {
		t.Errorf("default workspace must cd to an expandable tilde:\n%s", got)
	}
	if strings.Contains(got, `'~'`) {
		t.Errorf("tilde must not be quoted:\n%s", got)
	}
}

func TestParsePSUsage(t *testing.T) {
	usage := parsePSUsage(" 12.5  204800\n")
	if usage == nil {
		t.Fatal("expected usage")
	}
	if usage.CPUPercent != 12.5 || usage.RSSKB != 204800 {
		t.Errorf("usage = %+v", usage)
	}

	if parsePSUsage("") != nil {
		t.Error("empty output should yield nil")
	}
	if parsePSUsage("garbage") != nil {
		t.Error("malformed output should yield nil")
	}
}

func TestTailRecords(t *testing.T) {
	text := "one\ntwo\nthree\nfour\n"

	records := tailRecords(text, 2)
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].Line != 3 || records[0].Text != "three" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Line != 4 || records[1].Text != "four" {
		t.Errorf("records[1] = %+v", records[1])
	}

	if got := tailRecords(text, 0); len(got) != 4 {
		t.Errorf("n=0 should return everything, got %d", len(got))
	}
	if got := tailRecords("", 10); got != nil {
		t.Errorf("empty text should yield nil, got %+v", got)
	}
}

func TestParseExitCode(t *testing.T) {
	if code, ok := parseExitCode(" 7\n"); !ok || code != 7 {
		t.Errorf("parseExitCode = %d, %v", code, ok)
	}
	if _, ok := parseExitCode(""); ok {
		t.Error("empty input should not parse")
	}
	if _, ok := parseExitCode("not a number"); ok {
		t.Error("garbage should not parse")
	}
}
