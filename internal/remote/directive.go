package remote

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
	"github.com/graphql-go/graphql/language/visitor"
)

const functionDirective = "function"

// DirectiveError reports a malformed @function directive in a remote
// package's type definitions.
type DirectiveError struct {
	Package string
	Field   string
	Message string
}

func (e *DirectiveError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("remote package %q: %s", e.Package, e.Message)
	}
	return fmt.Sprintf("remote package %q: field %q: %s", e.Package, e.Field, e.Message)
}

// RewriteFunctionDirectives prefixes the name argument of every @function
// directive in doc with pkg, so packages can name their own actions
// without repeating the package name. doc is modified in place.
func RewriteFunctionDirectives(doc *ast.Document, pkg string) error {
	var rewriteErr error
	visitor.Visit(doc, &visitor.VisitorOptions{
		KindFuncMap: map[string]visitor.NamedVisitFuncs{
			kinds.FieldDefinition: {
				Kind: func(p visitor.VisitFuncParams) (string, interface{}) {
					field, ok := p.Node.(*ast.FieldDefinition)
					if !ok {
						return visitor.ActionNoChange, nil
					}
					for _, d := range field.Directives {
						if d.Name == nil || d.Name.Value != functionDirective {
							continue
						}
						if err := prefixActionName(d, pkg); err != nil {
							err.Field = field.Name.Value
							rewriteErr = err
							return visitor.ActionBreak, nil
						}
					}
					return visitor.ActionSkip, nil
				},
			},
		},
	}, nil)
	return rewriteErr
}

func prefixActionName(d *ast.Directive, pkg string) *DirectiveError {
	if len(d.Arguments) != 1 {
		return &DirectiveError{
			Package: pkg,
			Message: fmt.Sprintf("expected 1 argument to @%s, got %d", functionDirective, len(d.Arguments)),
		}
	}
	if arg := d.Arguments[0]; arg.Name == nil || arg.Name.Value != "name" {
		return &DirectiveError{
			Package: pkg,
			Message: fmt.Sprintf("unknown argument %q to @%s, expected name", nameValue(arg.Name), functionDirective),
		}
	}
	value, ok := d.Arguments[0].Value.(*ast.StringValue)
	if !ok {
		return &DirectiveError{
			Package: pkg,
			Message: fmt.Sprintf("expected a string name argument to @%s", functionDirective),
		}
	}
	value.Value = pkg + "/" + value.Value
	return nil
}

// functionName returns the action named by a @function directive, or ""
// when the directives carry none.
func functionName(directives []*ast.Directive) string {
	for _, d := range directives {
		if d.Name == nil || d.Name.Value != functionDirective || len(d.Arguments) != 1 {
			continue
		}
		if nameValue(d.Arguments[0].Name) != "name" {
			continue
		}
		if s, ok := d.Arguments[0].Value.(*ast.StringValue); ok {
			return s.Value
		}
	}
	return ""
}

func nameValue(n *ast.Name) string {
	if n == nil {
		return ""
	}
	return n.Value
}
