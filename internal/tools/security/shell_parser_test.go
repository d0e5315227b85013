package security

import "testing"

func TestAnalyzeCommandFlagsRiskCategory(t *testing.T) {
	cases := []struct {
		name    string
		command string
		safe    bool
		risk    string
	}{
		{"plain command", "echo hello", true, ""},
		{"semicolon chain", "echo hello; rm -rf /", false, "command_chain"},
		{"double ampersand chain", "test -f foo && cat foo", false, "command_chain"},
		{"double pipe chain", "test -f foo || echo missing", false, "command_chain"},
		{"single pipe", "cat file | grep pattern", false, "pipe"},
		{"redirect out", "echo data > file", false, "redirect"},
		{"redirect append", "echo data >> file", false, "redirect"},
		{"redirect in", "cat < file", false, "redirect"},
		{"backtick subshell", "echo `whoami`", false, "subshell"},
		{"dollar-paren subshell", "echo $(whoami)", false, "subshell"},
		{"background job", "sleep 100 &", false, "background"},
		{"empty command", "", true, ""},
		{"command with plain flags", "python3 main.py --verbose --input data.txt", true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := AnalyzeCommand(tc.command)
			if result.IsSafe != tc.safe {
				t.Errorf("AnalyzeCommand(%q).IsSafe = %v, want %v", tc.command, result.IsSafe, tc.safe)
			}
			if tc.safe || tc.risk == "" {
				return
			}
			for _, tok := range result.DangerousTokens {
				if tok.Risk == tc.risk {
					return
				}
			}
			t.Errorf("AnalyzeCommand(%q) missing risk %q, got tokens: %+v", tc.command, tc.risk, result.DangerousTokens)
		})
	}
}

func TestAnalyzeCommandQuoteAwareExemptsQuotedContent(t *testing.T) {
	cases := []struct {
		name    string
		command string
		safe    bool
	}{
		{"semicolon in single quotes", "echo 'hello; world'", true},
		{"semicolon in double quotes", `echo "hello; world"`, true},
		{"semicolon outside quotes", "echo 'hello'; echo 'world'", false},
		{"pipe in quotes", "echo 'cat | grep'", true},
		{"pipe outside quotes", "echo hello | grep h", false},
		{"redirect in quotes", `echo "data > file"`, true},
		{"redirect outside quotes", `echo "data" > file`, false},
		{"subshell in quotes", "echo '$(whoami)'", true},
		{"subshell outside quotes", "echo $(whoami)", false},
		{"backtick in single quotes", "echo '`whoami`'", true},
		{"backtick outside quotes", "echo `whoami`", false},
		{"escaped quote stays literal", `echo "hello\"world"`, true},
		{"mixed nested quotes", `echo "hello 'world'" 'foo "bar"'`, true},
		{"mixed quotes with trailing semicolon", `echo "hello"; echo 'world'`, false},
		{"background marker in quotes", "echo 'sleep &'", true},
		{"background marker outside quotes", "sleep 10 &", false},
		{"complex but fully quoted", `python3 -c "print('hello; world')" --arg="value|with|pipes"`, true},
		{"empty string", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := AnalyzeCommandQuoteAware(tc.command)
			if result.IsSafe != tc.safe {
				t.Errorf("AnalyzeCommandQuoteAware(%q).IsSafe = %v, want %v (tokens=%+v reason=%q)",
					tc.command, result.IsSafe, tc.safe, result.DangerousTokens, result.Reason)
			}
		})
	}
}

func TestIsSafeCommand(t *testing.T) {
	cases := []struct {
		command string
		safe    bool
	}{
		{"echo hello", true},
		{"echo hello; rm -rf /", false},
		{"echo 'hello; world'", true},
		{"cat file | grep foo", false},
		{"echo 'cat | grep'", true},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			if got := IsSafeCommand(tc.command); got != tc.safe {
				t.Errorf("IsSafeCommand(%q) = %v, want %v", tc.command, got, tc.safe)
			}
		})
	}
}

func TestExtractUnsafeReason(t *testing.T) {
	if got := ExtractUnsafeReason("echo hello"); got != "" {
		t.Errorf("expected no reason for a safe command, got %q", got)
	}
	got := ExtractUnsafeReason("echo hello; rm -rf /")
	if got == "" {
		t.Error("expected a non-empty reason for an unsafe command")
	}
}

func TestContainsShellMetacharacters(t *testing.T) {
	dangerous := []string{
		"hello;world", "hello|world", "hello>world", "hello<world",
		"hello&world", "hello`world", "hello$world", "hello(world",
		"hello)world", "hello{world", "hello}world", "hello[world",
		"hello]world", "hello*world", "hello?world", "hello!world",
		"hello#world", "hello~world", "hello=world", "hello%world",
		"hello^world",
	}
	for _, s := range dangerous {
		if !ContainsShellMetacharacters(s) {
			t.Errorf("ContainsShellMetacharacters(%q) = false, want true", s)
		}
	}

	safe := []string{"hello", "hello world"}
	for _, s := range safe {
		if ContainsShellMetacharacters(s) {
			t.Errorf("ContainsShellMetacharacters(%q) = true, want false", s)
		}
	}
}

func TestIsValidFilename(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"main.py", true},
		{"test_file.txt", true},
		{"data-2024.csv", true},
		{"", false},
		{".", false},
		{"..", false},
		{".hidden", false},
		{"path/to/file", false},
		{"path\\to\\file", false},
		{"file;name", false},
		{"file|name", false},
		{"file>name", false},
		{"file<name", false},
		{"file&name", false},
		{"file`name", false},
		{"file$name", false},
		{"file(name", false},
		{"file*name", false},
		{"file?name", false},
		{"file\x00name", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidFilename(tc.name); got != tc.valid {
				t.Errorf("IsValidFilename(%q) = %v, want %v", tc.name, got, tc.valid)
			}
		})
	}
}

func TestSanitizeCommand(t *testing.T) {
	inputs := []string{"echo hello", "echo hello; rm -rf /", ""}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			sanitized := SanitizeCommand(in)
			if in == "" || IsSafeCommand(in) {
				return
			}
			if !IsSafeCommand(sanitized) && sanitized[0] != '\'' {
				t.Errorf("SanitizeCommand(%q) = %q, expected it to end up safe or quoted", in, sanitized)
			}
		})
	}
}

func BenchmarkAnalyzeCommand(b *testing.B) {
	cmd := "python3 main.py --verbose --input data.txt"
	for i := 0; i < b.N; i++ {
		AnalyzeCommand(cmd)
	}
}

func BenchmarkAnalyzeCommandQuoteAware(b *testing.B) {
	cmd := `python3 -c "print('hello; world')" --arg="value|with|pipes"`
	for i := 0; i < b.N; i++ {
		AnalyzeCommandQuoteAware(cmd)
	}
}
