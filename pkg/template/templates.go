package template

// mainTemplate renders the entrypoint of a sealed runner binary. Its
// TTL-bound lifecycle and self-delete-on-exit behavior are adapted from
// cmd/micro-runner/main.go (the rendered main writes no READY/EXIT
// framing); the command loop
// there is replaced with pkg/runtime's DAG batch scheduler operating
// over the plan embedded below, and event/result reporting is an
// async HTTP POST instead of JSON-over-stdio, since a sealed binary
// runs standalone rather than being driven by an attached client.
const mainTemplate = `// Code generated by sealrunner's TemplateGenerator. DO NOT EDIT.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sealrunner/sealrunner/pkg/runtime"
)

const (
	binaryName    = {{printf "%q" .BinaryName}}
	controllerURL = {{printf "%q" .ControllerURL}}
	ttl           = {{.TTLSeconds}} * time.Second
)

var embeddedPlan = []byte(` + "`" + `{{.PlanJSON}}` + "`" + `)
var embeddedVariables = []byte(` + "`" + `{{.VariablesJSON}}` + "`" + `)
var requiredFacts = []string{
{{range .RequiredFacts}}	{{printf "%q" .}},
{{end}}}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	engine, err := runtime.New(runtime.Config{
		Plan:          embeddedPlan,
		Variables:     embeddedVariables,
		RequiredFacts: requiredFacts,
		ControllerURL: controllerURL,
		Modules:       registeredModules,
	})
	if err != nil {
		os.Exit(2)
	}

	exitCode := engine.Run(ctx)
	selfDelete()
	os.Exit(exitCode)
}

func selfDelete() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}
	_ = os.Remove(execPath)
}
`

// moduleRegistryTemplate renders the generated module dispatch table.
// Each entry's SourceBody is a validated module source fragment from
// pkg/modules (either builtin or resolved), spliced in verbatim.
const moduleRegistryTemplate = `// Code generated by sealrunner's TemplateGenerator. DO NOT EDIT.
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

var ErrMissingArgument = errors.New("missing required argument")

type Result = runtime.ModuleResult

var registeredModules = map[string]runtime.ModuleFunc{
{{range .}}	{{printf "%q" .Name}}: module_{{.Name}},
{{end}}}

{{range .}}
func module_{{.Name}}(ctx context.Context, args map[string]interface{}) (Result, error) {
{{.SourceBody}}
}
{{end}}
`

// staticFilesTemplate renders the embedded static files sealed into
// the binary, addressed by destination path at runtime.
const staticFilesTemplate = `// Code generated by sealrunner's TemplateGenerator. DO NOT EDIT.
package main

import "encoding/base64"

type embeddedStaticFile struct {
	DestPath string
	Checksum string
	data     string // base64, decoded lazily
}

func (f embeddedStaticFile) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.data)
}

var embeddedStaticFiles = []embeddedStaticFile{
{{range .}}	{DestPath: {{printf "%q" .DestPath}}, Checksum: {{printf "%q" .Checksum}}, data: {{printf "%q" .B64}}},
{{end}}}
`
