package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/sealrunner/sealrunner/pkg/runtime"
)

// ErrMissingArgument mirrors the sentinel pkg/template splices into
// every generated module registry, so error messages match between a
// compiled sealed binary and this reference host.
var ErrMissingArgument = errors.New("missing required argument")

func builtinModules() map[string]runtime.ModuleFunc {
	return map[string]runtime.ModuleFunc{
		"command": commandModule,
		"file":    fileModule,
		"package": packageModule,
	}
}

func commandModule(ctx context.Context, args map[string]interface{}) (runtime.ModuleResult, error) {
	cmdline, _ := args["command"].(string)
	if cmdline == "" {
		return runtime.ModuleResult{}, fmt.Errorf("command: %w", ErrMissingArgument)
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	return runtime.ModuleResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Changed: true,
		Failed:  err != nil,
	}, nil
}

func fileModule(ctx context.Context, args map[string]interface{}) (runtime.ModuleResult, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return runtime.ModuleResult{}, fmt.Errorf("file: %w", ErrMissingArgument)
	}
	before, _ := os.ReadFile(path)
	changed := string(before) != content
	if changed {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return runtime.ModuleResult{Failed: true, Error: err.Error()}, nil
		}
	}
	return runtime.ModuleResult{Changed: changed}, nil
}

type pkgManagerArgs struct {
	install []string
	remove  []string
}

// detectPackageManager probes for a known package manager binary on
// PATH, preferring apt, then dnf, yum, and zypper.
func detectPackageManager(ctx context.Context) (string, pkgManagerArgs, error) {
	candidates := map[string]pkgManagerArgs{
		"apt":    {install: []string{"install", "-y"}, remove: []string{"remove", "-y"}},
		"dnf":    {install: []string{"install", "-y"}, remove: []string{"remove", "-y"}},
		"yum":    {install: []string{"install", "-y"}, remove: []string{"remove", "-y"}},
		"zypper": {install: []string{"install", "-y"}, remove: []string{"remove", "-y"}},
	}
	for _, name := range []string{"apt", "dnf", "yum", "zypper"} {
		if _, err := exec.LookPath(name); err == nil {
			return name, candidates[name], nil
		}
	}
	return "", pkgManagerArgs{}, fmt.Errorf("no supported package manager found on PATH")
}

func packageModule(ctx context.Context, args map[string]interface{}) (runtime.ModuleResult, error) {
	name, _ := args["name"].(string)
	state, _ := args["state"].(string)
	if name == "" {
		return runtime.ModuleResult{}, fmt.Errorf("package: %w", ErrMissingArgument)
	}
	if state == "" {
		state = "present"
	}
	manager, managerArgs, err := detectPackageManager(ctx)
	if err != nil {
		return runtime.ModuleResult{Failed: true, Stderr: err.Error()}, nil
	}
	var cmdArgs []string
	switch state {
	case "absent":
		cmdArgs = append(managerArgs.remove, name)
	default:
		cmdArgs = append(managerArgs.install, name)
	}
	cmd := exec.CommandContext(ctx, manager, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err = cmd.Run()
	return runtime.ModuleResult{Stdout: stdout.String(), Stderr: stderr.String(), Changed: true, Failed: err != nil}, nil
}
