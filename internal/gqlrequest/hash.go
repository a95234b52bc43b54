package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
	"github.com/samber/lo"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints op together with the fragments it reaches,
// sorted by name, and hashes the result with the operation name.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	reached := map[string]bool{}
	reachFragments(op.SelectionSet, fragments, reached)
	names := lo.Keys(reached)
	sort.Strings(names)

	definitions := make([]ast.Node, 0, 1+len(names))
	definitions = append(definitions, op)
	for _, name := range names {
		fragment := fragments[name]
		if fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("could not print operation %s", effectiveOperationName(op))
	}
	return printed, FramedSHA256(printed, effectiveOperationName(op)), nil
}

func reachFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, reached map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			reachFragments(sel.SelectionSet, fragments, reached)
		case *ast.InlineFragment:
			reachFragments(sel.SelectionSet, fragments, reached)
		case *ast.FragmentSpread:
			if sel.Name == nil || reached[sel.Name.Value] {
				continue
			}
			reached[sel.Name.Value] = true
			if fragment := fragments[sel.Name.Value]; fragment != nil {
				reachFragments(fragment.SelectionSet, fragments, reached)
			}
		}
	}
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// FramedSHA256 hashes parts with a length prefix on each, so ("ab","c") and
// ("a","bc") differ. The schema fingerprint uses it as well.
func FramedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
