package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/samber/lo"
)

var (
	errNoOperation        = errors.New("request does not include an operation")
	errAmbiguousOperation = errors.New("operationName is required when request has multiple operations")
)

// Analysis holds the parsed request document and the metadata derived from
// its selected operation.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	// RootFields lists the distinct top-level fields the operation selects,
	// in document order, fragments included.
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// IntrospectionOnly reports whether every root field is a meta field such as
// __schema or __type. Such requests never reach a subschema.
func (a *Analysis) IntrospectionOnly() bool {
	if a == nil || len(a.RootFields) == 0 {
		return false
	}
	return lo.EveryBy(a.RootFields, func(name string) bool {
		return strings.HasPrefix(name, "__")
	})
}

// Err returns the first error recorded while analyzing the request.
func (a *Analysis) Err() error {
	if a == nil {
		return nil
	}
	for _, err := range []error{a.DecodeError, a.ParseError, a.SelectionError, a.CanonicalizeErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// AnalyzeRequest decodes and analyzes the GraphQL payload of r.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses env and derives operation metadata from it.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc
	analysis.Fragments = fragmentsByName(doc)

	op, err := selectOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)
	analysis.RootFields = lo.Uniq(rootFieldNames(op.SelectionSet, analysis.Fragments, map[string]bool{}))

	walker := selectionWalker{fragments: analysis.Fragments, inFlight: map[string]bool{}}
	analysis.FieldCount, analysis.SelectionDepth = walker.walk(op.SelectionSet, 1)

	canonical, hash, err := canonicalOperationAndHash(op, analysis.Fragments)
	if err != nil {
		analysis.CanonicalizeErr = err
		return analysis
	}
	analysis.CanonicalOperation = canonical
	analysis.OperationHash = hash
	return analysis
}

func fragmentsByName(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		if fragment, ok := def.(*ast.FragmentDefinition); ok && fragment.Name != nil && fragment.Name.Value != "" {
			fragments[fragment.Name.Value] = fragment
		}
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	operations := lo.FilterMap(doc.Definitions, func(def ast.Node, _ int) (*ast.OperationDefinition, bool) {
		op, ok := def.(*ast.OperationDefinition)
		return op, ok && op != nil
	})

	if operationName != "" {
		op, found := lo.Find(operations, func(op *ast.OperationDefinition) bool {
			return op.Name != nil && op.Name.Value == operationName
		})
		if !found {
			return nil, fmt.Errorf("unknown operation named %q", operationName)
		}
		return op, nil
	}

	switch len(operations) {
	case 0:
		return nil, errNoOperation
	case 1:
		return operations[0], nil
	default:
		return nil, errAmbiguousOperation
	}
}

func rootFieldNames(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) []string {
	if set == nil {
		return nil
	}
	var names []string
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name != nil {
				names = append(names, sel.Name.Value)
			}
		case *ast.InlineFragment:
			names = append(names, rootFieldNames(sel.SelectionSet, fragments, seen)...)
		case *ast.FragmentSpread:
			if sel.Name == nil || seen[sel.Name.Value] {
				continue
			}
			seen[sel.Name.Value] = true
			if fragment := fragments[sel.Name.Value]; fragment != nil {
				names = append(names, rootFieldNames(fragment.SelectionSet, fragments, seen)...)
			}
		}
	}
	return names
}

// selectionWalker counts fields and nesting depth. A fragment that spreads
// itself, directly or through another fragment, is only expanded once per path.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	inFlight  map[string]bool
}

func (w selectionWalker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		maxDepth = max(maxDepth, d)
	}

	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(w.walk(sel.SelectionSet, depth+1))
			}
		case *ast.InlineFragment:
			merge(w.walk(sel.SelectionSet, depth))
		case *ast.FragmentSpread:
			if sel.Name == nil || w.inFlight[sel.Name.Value] {
				continue
			}
			fragment := w.fragments[sel.Name.Value]
			if fragment == nil {
				continue
			}
			w.inFlight[sel.Name.Value] = true
			merge(w.walk(fragment.SelectionSet, depth))
			delete(w.inFlight, sel.Name.Value)
		}
	}
	return fields, maxDepth
}
