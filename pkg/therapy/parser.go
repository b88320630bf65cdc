// Package therapy parses and classifies lipid-lowering therapy names. It powers
// drug-class conflict checking and the named-regimen lookups of the lipid
// trajectory model.
package therapy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prime-cvd-server/internal/domain"
)

// Regimen patterns
var (
	// Named regimen pattern: "Atorvastatin 80mg", "rosuvastatin 20 mg"
	regimenPattern = regexp.MustCompile(`^(?i)([a-z]+)\s+(\d+(?:\.\d+)?)\s*mg$`)

	// Internal whitespace runs collapse to a single space during normalization
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Canonical agent casing for table keys and report output
	canonicalAgents = map[string]string{
		"atorvastatin": "Atorvastatin",
		"rosuvastatin": "Rosuvastatin",
		"simvastatin":  "Simvastatin",
		"pravastatin":  "Pravastatin",
	}
)

// Parser parses free-text therapy entries into structured regimens.
type Parser struct {
	validator *Validator
}

// NewParser creates a new therapy parser.
func NewParser() *Parser {
	return &Parser{
		validator: NewValidator(),
	}
}

// StatinRegimen is a parsed named statin prescription.
type StatinRegimen struct {
	Original string  `json:"original"`
	Agent    string  `json:"agent"`
	DoseMg   float64 `json:"dose_mg"`
	// Canonical is the "Agent N mg" form used to key the LDL-reduction table.
	Canonical string `json:"canonical"`
}

// ParseStatin parses a named statin regimen such as "Atorvastatin 80mg" or
// "rosuvastatin 20 mg". The returned canonical form is suitable for lookups in
// the LDL-reduction table; regimens absent from that table are still parsed.
func (p *Parser) ParseStatin(input string) (*StatinRegimen, error) {
	if input == "" {
		return nil, fmt.Errorf("parsing statin regimen: %w", domain.NewValidationError("discharge_statin", "Statin regimen cannot be empty", input))
	}

	name := strings.TrimSpace(input)
	if err := p.validator.ValidateTherapyName(name); err != nil {
		return nil, fmt.Errorf("parsing statin regimen %q: %w", input, err)
	}

	matches := regimenPattern.FindStringSubmatch(name)
	if matches == nil {
		return nil, fmt.Errorf("parsing statin regimen %q: %w", input, domain.NewValidationError("discharge_statin", "Regimen must be an agent name followed by a dose in mg", input))
	}

	agent := canonicalAgent(matches[1])
	if Classify(agent) != ClassStatin {
		return nil, fmt.Errorf("parsing statin regimen %q: %w", input, domain.NewValidationError("discharge_statin", "Agent is not a recognized statin", input))
	}

	dose, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing statin dose %s: %w", matches[2], err)
	}

	return &StatinRegimen{
		Original:  input,
		Agent:     agent,
		DoseMg:    dose,
		Canonical: fmt.Sprintf("%s %s mg", agent, matches[2]),
	}, nil
}

// Normalize lowercases a therapy name, trims it and collapses internal
// whitespace. Classification always operates on the normalized form.
func Normalize(name string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// canonicalAgent maps an agent name to its canonical casing.
func canonicalAgent(agent string) string {
	lower := strings.ToLower(agent)
	if canonical, exists := canonicalAgents[lower]; exists {
		return canonical
	}
	if lower == "" {
		return lower
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}
