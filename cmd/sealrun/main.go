// Command sealrun is the reference host for the embedded RuntimeEngine:
// unlike the per-deployment binaries pkg/template/pkg/build produce
// (whose plan is baked into the source tree at compile time), sealrun
// loads its plan from disk or stdin at process start. It exists so the
// runtime engine can be exercised, dry-run, or debugged directly
// without going through the full compile pipeline, and it carries the
// same builtin module set TemplateGenerator renders into sealed
// binaries (command, file, package), implemented here as real Go
// instead of spliced source fragments.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sealrunner/sealrunner/pkg/runtime"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sealrun", flag.ContinueOnError)
	planPath := fs.String("plan", "-", "path to the execution plan JSON document, or - for stdin")
	variablesPath := fs.String("variables", "", "path to a JSON document of extra variables")
	controllerURL := fs.String("controller-url", "", "optional controller endpoint for async progress reporting")
	ttl := fs.Duration("ttl", 10*time.Minute, "maximum wall-clock time before the run is aborted")
	factsFlag := fs.String("required-facts", "", "comma-separated list of fact names the plan requires")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	planBytes, err := readInput(*planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sealrun: failed to read plan: %v\n", err)
		return 2
	}

	var variablesBytes []byte
	if *variablesPath != "" {
		variablesBytes, err = os.ReadFile(*variablesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sealrun: failed to read variables: %v\n", err)
			return 2
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *ttl)
	defer cancel()

	engine, err := runtime.New(runtime.Config{
		Plan:          planBytes,
		Variables:     variablesBytes,
		RequiredFacts: splitNonEmpty(*factsFlag),
		ControllerURL: *controllerURL,
		Modules:       builtinModules(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sealrun: %v\n", err)
		return runtime.ExitSetup
	}

	return engine.Run(ctx)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
