package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootHelpListsCommands(t *testing.T) {
	output, err := runRootCommandForTest("--help")
	if err != nil {
		t.Fatalf("execute --help: %v\nOutput:\n%s", err, output)
	}

	for _, cmd := range []string{"onboard", "chat", "gateway", "status", "version"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("root help missing command %q\nOutput:\n%s", cmd, output)
		}
	}
	if strings.Contains(output, "docs") {
		t.Errorf("hidden docs command should not appear in help\nOutput:\n%s", output)
	}
}

func TestChatHelpShowsFlags(t *testing.T) {
	output, err := runRootCommandForTest("chat", "--help")
	if err != nil {
		t.Fatalf("execute chat --help: %v\nOutput:\n%s", err, output)
	}

	for _, flag := range []string{"--message", "--debug"} {
		if !strings.Contains(output, flag) {
			t.Errorf("chat help missing flag %q\nOutput:\n%s", flag, output)
		}
	}
}

func TestRootWithoutSubcommandFails(t *testing.T) {
	_, err := runRootCommandForTest()
	if err == nil {
		t.Fatal("expected error when no subcommand is given")
	}
	if !strings.Contains(err.Error(), "subcommand") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
