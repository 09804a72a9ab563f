package parsers

import (
	"fmt"
	"strings"
)

// Parser turns recognized lines into an Expense. Implementations hold no
// mutable state and never fail.
type Parser interface {
	Name() string
	// Supports reports whether the parser recognizes the document.
	Supports(lines []Line, rawText string) bool
	Parse(lines []Line, rawText string) Expense
}

// Kind identifies one of the built-in parsers.
type Kind int

const (
	KindGeneric Kind = iota
	KindBankAlert
	KindReceipt
)

// builtins is indexed by Kind.
var builtins = [...]func(Options) Parser{
	KindGeneric:   func(Options) Parser { return GenericParser{} },
	KindBankAlert: func(Options) Parser { return BankAlertParser{} },
	KindReceipt:   func(o Options) Parser { return NewReceiptParser(o) },
}

// Options tunes the spatial heuristics of the receipt parser.
type Options struct {
	// RowMergePx is the max vertical-center delta for two fragments to share a row.
	RowMergePx float64
	// ColumnMatchPx is the max horizontal distance to a column anchor.
	ColumnMatchPx float64
}

// DefaultOptions returns the empirically tuned thresholds.
func DefaultOptions() Options {
	return Options{RowMergePx: 12, ColumnMatchPx: 90}
}

// Registry dispatches a document to the first specialized parser whose
// Supports predicate fires, falling back to the generic parser.
type Registry struct {
	specialized []Parser
	fallback    Parser
}

// NewRegistry builds a registry checking kinds in the given priority order.
func NewRegistry(opts Options, kinds ...Kind) *Registry {
	r := &Registry{fallback: builtins[KindGeneric](opts)}
	for _, k := range kinds {
		if k == KindGeneric || k < 0 || int(k) >= len(builtins) {
			continue
		}
		r.specialized = append(r.specialized, builtins[k](opts))
	}
	return r
}

// RegistryForMode maps a configuration mode to a registry. "basic" (or empty)
// runs only the generic parser; "auto" tries bank-alert then receipt first.
func RegistryForMode(mode string, opts Options) (*Registry, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "basic":
		return NewRegistry(opts), nil
	case "auto":
		return NewRegistry(opts, KindBankAlert, KindReceipt), nil
	default:
		return nil, fmt.Errorf("unknown parser mode %q", mode)
	}
}

// Select returns the parser that should handle the document.
func (r *Registry) Select(lines []Line, rawText string) Parser {
	for _, p := range r.specialized {
		if p.Supports(lines, rawText) {
			return p
		}
	}
	return r.fallback
}

// Parse runs the selected parser.
func (r *Registry) Parse(lines []Line, rawText string) Expense {
	return r.Select(lines, rawText).Parse(lines, rawText)
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
