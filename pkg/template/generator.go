// Package template implements the TemplateGenerator: rendering a
// deployment-specific, self-contained Go source tree that BuildDriver
// compiles into a sealed runner binary. The rendered tree embeds the
// plan, static files, and the resolved module set directly as Go
// source and data literals — nothing is read from disk or fetched
// over the network once a binary has been built.
package template

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/template"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/modules"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// Generator renders the source tree for one BinaryDeployment.
type Generator struct {
	mainTmpl   *template.Template
	moduleTmpl *template.Template
	staticTmpl *template.Template
}

// NewGenerator parses the template set once, at construction, so
// rendering itself never returns a template-parse error.
func NewGenerator() (*Generator, error) {
	main, err := template.New("main.go").Parse(mainTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse main template: %w", err)
	}
	modReg, err := template.New("modules_generated.go").Parse(moduleRegistryTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse module registry template: %w", err)
	}
	static, err := template.New("embedded_static.go").Parse(staticFilesTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse static files template: %w", err)
	}
	return &Generator{mainTmpl: main, moduleTmpl: modReg, staticTmpl: static}, nil
}

// mainData is the data passed to the main.go template.
type mainData struct {
	BinaryName      string
	PlanJSON        string // Go-quoted JSON string literal body
	VariablesJSON   string
	RequiredFacts   []string
	Mode            types.ExecutionMode
	ControllerURL   string
	TTLSeconds      int
}

// moduleEntry describes one module as seen by the registry template.
type moduleEntry struct {
	Name       string
	SourceBody string
}

// staticEntry describes one embedded static file as seen by its template.
type staticEntry struct {
	VarName  string
	DestPath string
	Checksum string
	B64      string
}

// Generate renders the full source tree for dep, given its
// dependency-ordered, validated module set. The returned map is keyed
// by path relative to the generated module root (e.g. "main.go",
// "modules_generated.go", "go.mod").
func (g *Generator) Generate(dep types.BinaryDeployment, resolved []modules.ResolvedModule) (map[string][]byte, error) {
	tree := map[string][]byte{}

	planJSON, err := json.Marshal(json.RawMessage(dep.Embedded.Plan))
	if err != nil {
		return nil, errdefs.NewPermanent("failed to marshal embedded plan", err).
			WithCode(errdefs.CodeInvalidEmbeddedPlan).WithResource(dep.ID)
	}
	varsJSON, err := json.Marshal(dep.Embedded.Variables)
	if err != nil {
		return nil, errdefs.NewPermanent("failed to marshal embedded variables", err).
			WithCode(errdefs.CodeInvalidEmbeddedPlan).WithResource(dep.ID)
	}

	controllerURL := ""
	if dep.Mode == types.ModeController || dep.Mode == types.ModeHybrid {
		controllerURL = fmt.Sprintf("https://controller.internal/runs/%s/events", dep.ID)
	}

	data := mainData{
		BinaryName:    dep.BinaryName,
		PlanJSON:      string(planJSON),
		VariablesJSON: string(varsJSON),
		RequiredFacts: dep.Embedded.RequiredFacts,
		Mode:          dep.Mode,
		ControllerURL: controllerURL,
		TTLSeconds:    600,
	}

	var mainBuf bytes.Buffer
	if err := g.mainTmpl.Execute(&mainBuf, data); err != nil {
		return nil, fmt.Errorf("render main.go: %w", err)
	}
	tree["main.go"] = mainBuf.Bytes()

	modEntries := make([]moduleEntry, 0, len(resolved))
	for _, m := range resolved {
		body, ok := m.Tree["module.go"]
		if !ok {
			continue // non-Go (e.g. WASM) modules are linked by the build backend, not rendered as source
		}
		modEntries = append(modEntries, moduleEntry{Name: m.Spec.Name, SourceBody: string(body)})
	}
	sort.Slice(modEntries, func(i, j int) bool { return modEntries[i].Name < modEntries[j].Name })

	var modBuf bytes.Buffer
	if err := g.moduleTmpl.Execute(&modBuf, modEntries); err != nil {
		return nil, fmt.Errorf("render modules_generated.go: %w", err)
	}
	tree["modules_generated.go"] = modBuf.Bytes()

	staticEntries := make([]staticEntry, 0, len(dep.Embedded.StaticFiles))
	for i, f := range dep.Embedded.StaticFiles {
		content, err := os.ReadFile(f.SourcePath)
		if err != nil {
			return nil, errdefs.NewPermanent("failed to read static file "+f.SourcePath, err).
				WithCode(errdefs.CodeInvalidEmbeddedPlan).WithResource(dep.ID)
		}
		staticEntries = append(staticEntries, staticEntry{
			VarName:  fmt.Sprintf("staticFile%d", i),
			DestPath: f.DestPath,
			Checksum: f.Checksum,
			B64:      base64.StdEncoding.EncodeToString(content),
		})
	}
	var staticBuf bytes.Buffer
	if err := g.staticTmpl.Execute(&staticBuf, staticEntries); err != nil {
		return nil, fmt.Errorf("render embedded_static.go: %w", err)
	}
	tree["embedded_static.go"] = staticBuf.Bytes()

	tree["go.mod"] = []byte(fmt.Sprintf("module %s\n\ngo 1.25.2\n", sanitizeModuleName(dep.BinaryName)))

	return tree, nil
}

func sanitizeModuleName(name string) string {
	if name == "" {
		return "sealed-runner"
	}
	return "sealed/" + name
}
