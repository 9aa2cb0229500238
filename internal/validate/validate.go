// Package validate performs deterministic static checks on generated
// robot code: structure, imports, API misuse, and safety rules.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Finding kinds.
const (
	KindSyntaxError      = "syntax-error"
	KindUnresolvedImport = "unresolved-import"
	KindForbiddenAPI     = "forbidden-api-pattern"
	KindSafetyViolation  = "safety-violation"
	KindStyleWarning     = "style-warning"
)

// Finding severities. Fatal findings block the pipeline; warnings are
// advisory and forwarded to the evaluator stage.
const (
	SeverityFatal   = "fatal"
	SeverityWarning = "warning"
)

// Finding is a single validator observation.
type Finding struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// Report is the outcome of validating one code artifact.
type Report struct {
	Findings []Finding `json:"findings"`
}

// Passing reports whether the artifact has no fatal findings.
func (r Report) Passing() bool {
	return len(r.Fatal()) == 0
}

// Fatal returns the fatal findings only.
func (r Report) Fatal() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityFatal {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns the non-fatal findings only.
func (r Report) Warnings() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// Validator checks generated code against the robot API surface.
type Validator struct {
	allowedImports []string
}

// New constructs a Validator with the given import allow-list, typically
// knowledge.Base.AllowedImports().
func New(allowedImports []string) *Validator {
	return &Validator{allowedImports: allowedImports}
}

// Calls that must never appear in generated robot code.
var unsafePatterns = []string{
	"os.system", "subprocess", "eval(", "exec(", "import shutil",
	"__import__", "pickle", "shelve", "marshal",
	"socket", "requests.post", "requests.put", "requests.delete",
}

// Internal helpers that are not part of the official SDK surface.
var nonAPIPatterns = []string{
	"import agent",
	"from agent",
	"connection_manager",
	"get_reachy(",
	"connect_to_reachy",
	"disconnect_reachy",
}

// SDK attributes that are properties, not methods.
var propertyNames = []string{
	"r_arm", "l_arm", "head", "cameras", "mobile_base",
	"gripper", "r_gripper", "l_gripper",
}

var (
	armGotoRe  = regexp.MustCompile(`(?s)(?:r_arm|l_arm|right_arm|left_arm)\.goto\s*\(\s*\[(.*?)\]`)
	movementRe = regexp.MustCompile(`\.(goto|goto_posture|look_at|translate_by|rotate_by|open|close)\s*\(`)
)

// Validate runs all checks against one artifact. It is pure and
// deterministic: the same code always yields the same report.
func (v *Validator) Validate(code string) Report {
	var report Report

	if strings.TrimSpace(code) == "" {
		report.add(Finding{
			Kind:     KindSyntaxError,
			Severity: SeverityFatal,
			Message:  "no code was generated",
		})
		return report
	}

	stripped, lexIssues := scanSource(code)
	if len(lexIssues) > 0 {
		for _, issue := range lexIssues {
			report.add(Finding{
				Kind:     KindSyntaxError,
				Severity: SeverityFatal,
				Message:  "syntax error: " + issue.message,
				Line:     issue.line,
			})
		}
		// API checks on structurally broken code produce noise.
		return report
	}

	v.checkImports(stripped, &report)
	v.checkNonAPIUsage(stripped, &report)
	v.checkPropertyCalls(stripped, &report)
	v.checkArmGoto(stripped, &report)
	v.checkUnsafeCalls(stripped, &report)
	v.checkShutdown(stripped, &report)
	v.checkLifecycle(stripped, &report)

	return report
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

func (v *Validator) checkImports(stripped string, report *Report) {
	for n, raw := range strings.Split(stripped, "\n") {
		line := strings.TrimSpace(raw)
		var module string
		switch {
		case strings.HasPrefix(line, "import "):
			module = strings.TrimSpace(strings.TrimPrefix(line, "import "))
		case strings.HasPrefix(line, "from "):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "from "))
			if i := strings.Index(rest, " import"); i >= 0 {
				module = rest[:i]
			} else {
				module = rest
			}
		default:
			continue
		}
		if i := strings.IndexAny(module, " ,("); i >= 0 {
			module = module[:i]
		}
		module = strings.TrimSpace(module)
		if module == "" || v.importAllowed(module) {
			continue
		}
		report.add(Finding{
			Kind:     KindUnresolvedImport,
			Severity: SeverityFatal,
			Message:  fmt.Sprintf("unofficial import %q: only use modules from the official SDK", module),
			Line:     n + 1,
			Snippet:  line,
		})
	}
}

func (v *Validator) importAllowed(module string) bool {
	for _, allowed := range v.allowedImports {
		if module == allowed || strings.HasPrefix(module, allowed+".") {
			return true
		}
		// Importing a parent package of an official module is fine,
		// e.g. "from reachy2_sdk import ReachySDK".
		if strings.HasPrefix(allowed, module+".") {
			return true
		}
	}
	return false
}

func (v *Validator) checkNonAPIUsage(stripped string, report *Report) {
	for _, pattern := range nonAPIPatterns {
		if n := lineOf(stripped, pattern); n > 0 {
			report.add(Finding{
				Kind:     KindForbiddenAPI,
				Severity: SeverityFatal,
				Message:  "internal helper in use: the code calls functions that are not part of the official SDK API",
				Line:     n,
				Snippet:  pattern,
			})
			return
		}
	}
}

func (v *Validator) checkPropertyCalls(stripped string, report *Report) {
	for _, name := range propertyNames {
		pattern := name + "()"
		if n := lineOf(stripped, pattern); n > 0 {
			report.add(Finding{
				Kind:     KindForbiddenAPI,
				Severity: SeverityFatal,
				Message:  fmt.Sprintf("%q is a property, not a method: drop the parentheses", name),
				Line:     n,
				Snippet:  pattern,
			})
		}
	}
}

func (v *Validator) checkArmGoto(stripped string, report *Report) {
	for _, match := range armGotoRe.FindAllStringSubmatchIndex(stripped, -1) {
		inner := stripped[match[2]:match[3]]
		joints := strings.Split(inner, ",")
		count := 0
		for _, j := range joints {
			if strings.TrimSpace(j) != "" {
				count++
			}
		}
		if count != 7 {
			report.add(Finding{
				Kind:     KindForbiddenAPI,
				Severity: SeverityFatal,
				Message:  fmt.Sprintf("arm goto() requires exactly 7 joint values, found %d", count),
				Line:     1 + strings.Count(stripped[:match[0]], "\n"),
			})
		}
	}
}

func (v *Validator) checkUnsafeCalls(stripped string, report *Report) {
	for _, pattern := range unsafePatterns {
		if n := lineOf(stripped, pattern); n > 0 {
			report.add(Finding{
				Kind:     KindSafetyViolation,
				Severity: SeverityFatal,
				Message:  fmt.Sprintf("potentially unsafe operation %q is not allowed", pattern),
				Line:     n,
				Snippet:  pattern,
			})
		}
	}
	v.checkUnboundedLoops(stripped, report)
}

func (v *Validator) checkUnboundedLoops(stripped string, report *Report) {
	lines := strings.Split(stripped, "\n")
	for n, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "while True") {
			continue
		}
		indent := indentOf(raw)
		hasBreak := false
		for _, body := range lines[n+1:] {
			if strings.TrimSpace(body) == "" {
				continue
			}
			if indentOf(body) <= indent {
				break
			}
			if strings.HasPrefix(strings.TrimSpace(body), "break") {
				hasBreak = true
				break
			}
		}
		if !hasBreak {
			report.add(Finding{
				Kind:     KindSafetyViolation,
				Severity: SeverityFatal,
				Message:  "unbounded loop: 'while True' without a break leaves the robot running forever",
				Line:     n + 1,
			})
		}
	}
}

func (v *Validator) checkShutdown(stripped string, report *Report) {
	// turn_off() is destructive on this hardware; the smooth variant
	// ramps torque down first.
	for n, raw := range strings.Split(stripped, "\n") {
		if strings.Contains(raw, "turn_off()") && !strings.Contains(raw, "turn_off_smoothly()") {
			report.add(Finding{
				Kind:     KindSafetyViolation,
				Severity: SeverityFatal,
				Message:  "use turn_off_smoothly() instead of turn_off() to avoid damaging the robot",
				Line:     n + 1,
				Snippet:  "turn_off()",
			})
		}
	}
}

func (v *Validator) checkLifecycle(stripped string, report *Report) {
	if !strings.Contains(stripped, "turn_on()") {
		report.add(Finding{
			Kind:     KindSafetyViolation,
			Severity: SeverityWarning,
			Message:  "missing turn_on() call: turn on the robot before any movement",
		})
	}
	if !strings.Contains(stripped, "turn_off_smoothly()") {
		report.add(Finding{
			Kind:     KindSafetyViolation,
			Severity: SeverityWarning,
			Message:  "missing turn_off_smoothly() call: turn off the robot smoothly when done",
		})
	}
	if !strings.Contains(stripped, "disconnect()") {
		report.add(Finding{
			Kind:     KindStyleWarning,
			Severity: SeverityWarning,
			Message:  "no disconnect() call found in the code",
		})
	}
	if !containsStatement(stripped, "try:") {
		report.add(Finding{
			Kind:     KindStyleWarning,
			Severity: SeverityWarning,
			Message:  "no try block found for error handling",
		})
	}
	if !containsStatement(stripped, "finally:") {
		report.add(Finding{
			Kind:     KindStyleWarning,
			Severity: SeverityWarning,
			Message:  "no finally block found for ensuring cleanup",
		})
	}
	if movementRe.MatchString(stripped) && !strings.Contains(stripped, "time.sleep(") {
		report.add(Finding{
			Kind:     KindStyleWarning,
			Severity: SeverityWarning,
			Message:  "no time.sleep() after movement commands: movements may be cut short",
		})
	}
}

func containsStatement(stripped, stmt string) bool {
	for _, raw := range strings.Split(stripped, "\n") {
		if strings.TrimSpace(raw) == stmt {
			return true
		}
	}
	return false
}

func lineOf(s, pattern string) int {
	i := strings.Index(s, pattern)
	if i < 0 {
		return 0
	}
	return 1 + strings.Count(s[:i], "\n")
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 8
		default:
			return n
		}
	}
	return n
}
