// Package schema holds the registry of named structured-output contracts.
// A profile maps to a fixed strict JSON Schema that is passed through
// verbatim to the external provider as a response_format constraint; the
// backend never validates conformance itself.
package schema

// DefaultProfile is the profile requested when the caller does not name one.
const DefaultProfile = "income_cashflow_expense"

// labelTotalList is a schema fragment for a list of label+total pairs.
func labelTotalList() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"label", "total"},
			"properties": map[string]any{
				"label": map[string]any{"type": "string"},
				"total": map[string]any{"type": "number"},
			},
		},
	}
}

// financialReportSchema is the fixed three-section contract: an income
// statement series, a cash flow summary, and an expense breakdown.
var financialReportSchema = map[string]any{
	"name": "financial_reports",
	"schema": map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"income_statement", "cash_flow", "expense_breakdown"},
		"properties": map[string]any{
			"income_statement": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"periods"},
				"properties": map[string]any{
					"periods": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required": []string{
								"label", "revenue", "cogs", "gross_profit",
								"operating_expenses", "operating_income",
								"other_net", "taxes", "net_income", "margins",
							},
							"properties": map[string]any{
								"label":              map[string]any{"type": "string"},
								"revenue":            map[string]any{"type": "number"},
								"cogs":               map[string]any{"type": "number"},
								"gross_profit":       map[string]any{"type": "number"},
								"operating_expenses": map[string]any{"type": "number"},
								"operating_income":   map[string]any{"type": "number"},
								"other_net":          map[string]any{"type": "number"},
								"taxes":              map[string]any{"type": "number"},
								"net_income":         map[string]any{"type": "number"},
								"margins": map[string]any{
									"type":                 "object",
									"additionalProperties": false,
									"required":             []string{"gross", "operating", "net"},
									"properties": map[string]any{
										"gross":     map[string]any{"type": "number"},
										"operating": map[string]any{"type": "number"},
										"net":       map[string]any{"type": "number"},
									},
								},
							},
						},
					},
				},
			},
			"cash_flow": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"operating", "investing", "financing", "net_change"},
				"properties": map[string]any{
					"operating":  map[string]any{"type": "number"},
					"investing":  map[string]any{"type": "number"},
					"financing":  map[string]any{"type": "number"},
					"net_change": map[string]any{"type": "number"},
				},
			},
			"expense_breakdown": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"by_category", "by_vendor", "by_month"},
				"properties": map[string]any{
					"by_category": labelTotalList(),
					"by_vendor":   labelTotalList(),
					"by_month":    labelTotalList(),
				},
			},
		},
	},
	"strict": true,
}

var profiles = map[string]map[string]any{
	DefaultProfile: {
		"type":        "json_schema",
		"json_schema": financialReportSchema,
		"strict":      true,
	},
}

// ResponseFormat returns the response_format payload for the given profile
// name, or nil for an unrecognized profile. An unrecognized name is not an
// error: the run simply proceeds without schema enforcement.
func ResponseFormat(profile string) map[string]any {
	return profiles[profile]
}

// Profiles returns the registered profile names.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	return names
}
