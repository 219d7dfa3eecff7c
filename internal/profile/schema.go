package profile

import (
	"encoding/json"
	"fmt"

	"voledge/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Param schemas are closed: a profile may only tune the knobs its
// family actually reads.
const (
	condorParamsSchema = `{
		"type": "object",
		"properties": {
			"wing_width":  {"type": "number", "exclusiveMinimum": 0},
			"short_delta": {"type": "number", "exclusiveMinimum": 0, "maximum": 0.5},
			"min_premium": {"type": "number", "minimum": 0},
			"dte_target":  {"type": "integer", "minimum": 1}
		},
		"additionalProperties": false
	}`

	verticalParamsSchema = `{
		"type": "object",
		"properties": {
			"spread_width": {"type": "number", "exclusiveMinimum": 0},
			"min_premium":  {"type": "number", "minimum": 0},
			"dte_target":   {"type": "integer", "minimum": 1}
		},
		"additionalProperties": false
	}`

	defaultParamsSchema = `{
		"type": "object",
		"properties": {
			"min_premium": {"type": "number", "minimum": 0},
			"dte_target":  {"type": "integer", "minimum": 1}
		},
		"additionalProperties": false
	}`
)

var paramSchemas = map[types.StrategyFamily]*jsonschema.Schema{
	types.StrategyIronCondor:     jsonschema.MustCompileString("condor_params.json", condorParamsSchema),
	types.StrategyBullCallSpread: jsonschema.MustCompileString("vertical_params.json", verticalParamsSchema),
	types.StrategyBearPutSpread:  jsonschema.MustCompileString("vertical_params.json", verticalParamsSchema),
	"":                           jsonschema.MustCompileString("default_params.json", defaultParamsSchema),
}

func validateParams(family types.StrategyFamily, params map[string]interface{}) error {
	if len(params) == 0 {
		return nil
	}
	schema, ok := paramSchemas[family]
	if !ok {
		return fmt.Errorf("%w: unknown strategy family %q", types.ErrValidation, family)
	}
	// Round-trip through JSON so the validator sees json-typed values
	// regardless of how the YAML decoder typed them.
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: params not serializable: %v", types.ErrValidation, err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: params not serializable: %v", types.ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: params rejected for %s: %v", types.ErrValidation, family, err)
	}
	return nil
}
