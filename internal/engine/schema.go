package engine

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const envelopeSchema = `{
	"type": "object",
	"required": ["error", "result"],
	"properties": {
		"error": {"type": ["string", "null"]}
	}
}`

const pathResultSchema = `{"type": "string", "minLength": 1}`

var resultSchemas = map[string]string{
	OpDocumentInfo: `{
		"type": "object",
		"required": ["page_count"],
		"properties": {
			"page_count": {"type": "integer", "minimum": 0},
			"title": {"type": "string"},
			"author": {"type": "string"},
			"created_at": {"type": "string"}
		}
	}`,
	OpPageThumbnails: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["page", "thumbnail"],
			"properties": {
				"page": {"type": "integer", "minimum": 1},
				"thumbnail": {"type": "string"}
			}
		}
	}`,
	OpPageImage:    `{"type": "string", "minLength": 1}`,
	OpReorderPages: pathResultSchema,
	OpRotatePages:  pathResultSchema,
	OpDeletePages:  pathResultSchema,
	OpExtractText:  `{"type": "string"}`,
	OpReplaceText: `{
		"type": "object",
		"required": ["new_path", "replacement_count"],
		"properties": {
			"new_path": {"type": "string", "minLength": 1},
			"replacement_count": {"type": "integer", "minimum": 0}
		}
	}`,
}

type schemaSet struct {
	envelope *jsonschema.Schema
	results  map[string]*jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	c := jsonschema.NewCompiler()
	compile := func(name, src string) (*jsonschema.Schema, error) {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		url := "https://pagedesk.local/schemas/" + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		return c.Compile(url)
	}

	set := &schemaSet{results: map[string]*jsonschema.Schema{}}
	var err error
	if set.envelope, err = compile("envelope", envelopeSchema); err != nil {
		return nil, err
	}
	for op, src := range resultSchemas {
		if set.results[op], err = compile(op, src); err != nil {
			return nil, err
		}
	}
	return set, nil
}
