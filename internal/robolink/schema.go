package robolink

import (
	_ "embed"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed response.schema.json
var responseSchemaJSON string

// responseSchema validates every inbound frame before it is decoded. A
// frame that fails validation is a protocol error, not a command failure,
// and takes the link down.
var responseSchema = mustCompileSchema("response.schema.json", responseSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic("robolink: bad embedded schema: " + err.Error())
	}
	return c.MustCompile(name)
}
