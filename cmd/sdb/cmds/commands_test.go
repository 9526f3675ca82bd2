package cmds

import "testing"

func TestNewCommandTree(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := New()
	if root.Use != "sdb" {
		t.Errorf("root command is %q", root.Use)
	}

	want := map[string]bool{"attach": false, "exec": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q missing", name)
		}
	}

	for _, flag := range []string{"log", "log-output", "log-dest", "source-root"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag %q missing", flag)
		}
	}
}

func TestAttachRequiresPid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := New()
	for _, cmd := range root.Commands() {
		if cmd.Name() != "attach" {
			continue
		}
		if err := cmd.Args(cmd, nil); err == nil {
			t.Error("attach accepted an empty argument list")
		}
		if err := cmd.Args(cmd, []string{"1234"}); err != nil {
			t.Errorf("attach rejected a pid: %v", err)
		}
	}
}
