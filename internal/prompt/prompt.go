// Package prompt holds the instruction sections for the generator and
// evaluator models as an ordered registry keyed by section name.
package prompt

import (
	"fmt"
	"strings"
)

// Sections returns the full registry of section texts keyed by name.
func Sections() map[string]string {
	return map[string]string{
		KeyGeneratorRole:       generatorRole,
		KeyEvaluatorRole:       evaluatorRole,
		KeyOfficialModules:     officialModules,
		KeyCriticalWarnings:    criticalWarnings,
		KeyCodeStructure:       codeStructure,
		KeyBasicExample:        basicExample,
		KeyReachabilityExample: reachabilityExample,
		KeySafeRanges:          safeRanges,
		KeyResponseFormat:      responseFormat,
		KeyEvaluationRubric:    evaluationRubric,
		KeyEvaluationResponse:  evaluationResponse,
	}
}

// GeneratorOrder is the default section order for the generator prompt.
// The api_summary section has no static text and is supplied per request.
func GeneratorOrder() []string {
	return []string{
		KeyGeneratorRole,
		KeyOfficialModules,
		KeyCriticalWarnings,
		KeyCodeStructure,
		KeyBasicExample,
		KeyReachabilityExample,
		KeySafeRanges,
		KeyAPISummary,
		KeyResponseFormat,
	}
}

// EvaluatorOrder is the default section order for the evaluator prompt.
func EvaluatorOrder() []string {
	return []string{
		KeyEvaluatorRole,
		KeyOfficialModules,
		KeyCriticalWarnings,
		KeySafeRanges,
		KeyAPISummary,
		KeyEvaluationRubric,
		KeyEvaluationResponse,
	}
}

// SharedKeys lists the sections whose text must be identical in the
// generator and evaluator assemblies.
func SharedKeys() []string {
	return []string{
		KeyOfficialModules,
		KeyCriticalWarnings,
		KeySafeRanges,
	}
}

// Assemble joins sections in the given order into one prompt. Overrides
// replace or supply section text by key; a key with neither registry
// text nor an override is an error, except that an empty override
// drops the section.
func Assemble(order []string, overrides map[string]string) (string, error) {
	registry := Sections()
	parts := make([]string, 0, len(order))
	for _, key := range order {
		text, overridden := overrides[key]
		if !overridden {
			var ok bool
			text, ok = registry[key]
			if !ok {
				return "", fmt.Errorf("prompt section %q has no text", key)
			}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "\n\n"), nil
}
