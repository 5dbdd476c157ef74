package extract

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// invoiceSchema reflects Invoice into a JSON schema suitable for the Responses API's
// strict structured-output mode, handing OpenAI's client a plain map rather than the
// jsonschema package's own type so it round-trips through the SDK's params unmodified.
func invoiceSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(&Invoice{})

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	// Reflect() emits a top-level $schema key the Responses API strict-mode validator
	// rejects on an object-typed root; it's informational only.
	delete(out, "$schema")
	return out, nil
}
