package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Dvl-es/tradevault/internal/version"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, version.CLIVersion) {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	if code == 0 {
		t.Fatal("unknown command must fail")
	}
	if stderr == "" {
		t.Fatal("expected an error message on stderr")
	}
}

func TestSwapRequiresTokenFlags(t *testing.T) {
	code, _, _ := runCLI(t, "swap", "--config", t.TempDir()+"/missing.yaml")
	if code == 0 {
		t.Fatal("swap without required flags must fail")
	}
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	code, _, stderr := runCLI(t,
		"quote",
		"--config", t.TempDir()+"/missing.yaml",
		"--token-in", "0x2000000000000000000000000000000000000001",
		"--token-out", "0x2000000000000000000000000000000000000002",
		"--amount-in", "0",
	)
	if code == 0 {
		t.Fatal("zero amount must fail")
	}
	if !strings.Contains(stderr, "amount-in") {
		t.Fatalf("stderr = %q", stderr)
	}
}
