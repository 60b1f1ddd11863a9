package plan

import (
	"context"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaRegistry validates raw plan documents against a CUE schema
// before migration, catching UnsupportedFormatVersion-class structural
// problems (wrong types for id, plays, binary_deployments or metadata).
// Ingest checks for a missing id and for missing plays/binary_deployments
// itself, before the schema runs.
type schemaRegistry struct {
	ctx    *cue.Context
	schema cue.Value
}

func newSchemaRegistry() *schemaRegistry {
	ctx := cuecontext.New()
	return &schemaRegistry{
		ctx:    ctx,
		schema: ctx.CompileString(planDocumentSchema),
	}
}

const planDocumentSchema = `
#PlanDocument: {
	id: string
	plays?: [...{...}]
	binary_deployments?: [...{...}]
	metadata?: {[string]: _}
}
`

func (sr *schemaRegistry) validate(ctx context.Context, document []byte) error {
	var data interface{}
	if err := json.Unmarshal(document, &data); err != nil {
		return fmt.Errorf("decode for schema check: %w", err)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("encode plan document: %w", err)
	}

	def := sr.schema.LookupPath(cue.ParsePath("#PlanDocument"))
	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("plan document schema validation: %w", err)
	}

	return nil
}
