package modules

// builtinModules is the registry of modules shipped inside sealrunner
// itself. Each entry's source is what TemplateGenerator embeds
// directly into a sealed binary's module dispatch table — no
// resolution step is needed at compile time for these.
var builtinModules = map[string]SourceTree{
	"command": {
		"module.go": []byte(builtinCommandSource),
	},
	"file": {
		"module.go": []byte(builtinFileSource),
	},
	"package": {
		"module.go": []byte(builtinPackageSource),
	},
}

// The builtin module sources below are Go source fragments rendered
// verbatim into a generated runner's module registry by pkg/template;
// they are not executed by the compiler that built sealrunner itself.

const builtinCommandSource = `
// Package command runs an arbitrary shell command on the host and
// reports its stdout/stderr/exit code.
func Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	cmdline, _ := args["command"].(string)
	if cmdline == "" {
		return Result{}, fmt.Errorf("command: %w", ErrMissingArgument)
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	return Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Changed: true,
		Failed:  err != nil,
	}, nil
}
`

const builtinFileSource = `
// Package file ensures a file's content, mode, and ownership match
// the requested state.
func Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return Result{}, fmt.Errorf("file: %w", ErrMissingArgument)
	}
	before, _ := os.ReadFile(path)
	changed := string(before) != content
	if changed {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return Result{Failed: true}, nil
		}
	}
	return Result{Changed: changed}, nil
}
`

const builtinPackageSource = `
// Package pkgensure installs or removes an OS package via the host's
// native package manager, adapted from the linux.pkg provider
// previously packaged as a standalone WASM plugin: multi-manager
// support (apt, dnf, yum, zypper) collapses here into one in-tree
// module instead of a separately-compiled, separately-loaded plugin.
func Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	name, _ := args["name"].(string)
	state, _ := args["state"].(string)
	if name == "" {
		return Result{}, fmt.Errorf("package: %w", ErrMissingArgument)
	}
	if state == "" {
		state = "present"
	}
	manager, args2, err := detectPackageManager(ctx)
	if err != nil {
		return Result{Failed: true, Stderr: err.Error()}, nil
	}
	var cmdArgs []string
	switch state {
	case "absent":
		cmdArgs = append(args2.remove, name)
	default:
		cmdArgs = append(args2.install, name)
	}
	cmd := exec.CommandContext(ctx, manager, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err = cmd.Run()
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Changed: true, Failed: err != nil}, nil
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
`
