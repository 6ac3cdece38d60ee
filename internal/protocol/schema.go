package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// SchemaNames lists the embedded schema files.
var SchemaNames = []string{
	"hello.schema.json",
	"welcome.schema.json",
	"obs.schema.json",
	"act.schema.json",
	"end.schema.json",
}

const schemaBase = "https://aquapolo.ai/schemas/"

// Validator checks frames against the embedded schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range SchemaNames {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(SchemaNames))}
	for _, name := range SchemaNames {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// Validate checks a raw frame against the named schema.
func (v *Validator) Validate(name string, raw []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %s", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (v *Validator) ValidateObs(raw []byte) error { return v.Validate("obs.schema.json", raw) }

// ValidateAct marshals act and checks it; used before sending when validation is on.
func (v *Validator) ValidateAct(act ActMsg) error {
	raw, err := json.Marshal(act)
	if err != nil {
		return err
	}
	return v.Validate("act.schema.json", raw)
}
