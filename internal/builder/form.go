package builder

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/errs"
)

//go:embed resume_form.schema.json
var formSchema string

const rootField = "(root)"

// LoadForm reads a résumé form from a JSON file and checks it against the form schema.
func LoadForm(path string) (*api.ResumeForm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading form: %w", err)
	}
	return ParseForm(data)
}

// ParseForm validates raw JSON against the form schema and decodes it.
func ParseForm(data []byte) (*api.ResumeForm, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(formSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "form is not valid JSON", err)
	}

	if !result.Valid() {
		fields := make(map[string]string, len(result.Errors()))
		for _, desc := range result.Errors() {
			fields[fieldOf(desc)] = desc.Description()
		}
		return nil, errs.Validation(summarize(fields), fields)
	}

	var form api.ResumeForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "decoding form", err)
	}

	return &form, nil
}

// fieldOf names the offending field. Missing and unexpected properties are
// reported on their parent by gojsonschema, so the property is appended.
func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == rootField {
		field = ""
	}

	switch desc.Type() {
	case "required", "additional_property_not_allowed":
		if prop, ok := desc.Details()["property"].(string); ok && prop != "" {
			if field == "" {
				return prop
			}
			return field + "." + prop
		}
	}

	if field == "" {
		return rootField
	}
	return field
}

func summarize(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return fmt.Sprintf("%s: %s", keys[0], fields[keys[0]])
	}
	return fmt.Sprintf("form has %d problems: %s", len(keys), strings.Join(keys, ", "))
}
