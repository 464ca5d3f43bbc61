package extract

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed response.schema.json
var responseSchemaJSON string

var (
	responseSchemaOnce sync.Once
	responseSchema     *jsonschema.Schema
	responseSchemaErr  error
)

func compiledResponseSchema() (*jsonschema.Schema, error) {
	responseSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("response.schema.json", strings.NewReader(responseSchemaJSON)); err != nil {
			responseSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		responseSchema, responseSchemaErr = compiler.Compile("response.schema.json")
	})
	return responseSchema, responseSchemaErr
}

func validateResponse(raw json.RawMessage) error {
	schema, err := compiledResponseSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
