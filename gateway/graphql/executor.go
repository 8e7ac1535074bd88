package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

//go:embed schema.graphqls
var schemaSource string

// Request is a GraphQL HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL HTTP response body.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// Executor parses, validates, and executes GraphQL documents against the
// resolver. Queries and mutations run here; subscriptions are rejected
// and must arrive over the websocket transport.
type Executor struct {
	schema   *ast.Schema
	resolver *Resolver
	logger   *slog.Logger
}

// NewExecutor loads the embedded schema and binds it to the resolver.
func NewExecutor(resolver *Resolver, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := gqlparser.LoadSchema(&ast.Source{
		Name:  "schema.graphqls",
		Input: schemaSource,
	})
	if err != nil {
		return nil, errors.WrapFatal(err, "Executor", "NewExecutor", "load schema")
	}
	return &Executor{
		schema:   schema,
		resolver: resolver,
		logger:   logger.With("component", "executor"),
	}, nil
}

// Schema exposes the parsed schema for the subscription transport.
func (e *Executor) Schema() *ast.Schema { return e.schema }

// Parse validates a request document and returns the selected operation.
func (e *Executor) Parse(req Request) (*ast.QueryDocument, *ast.OperationDefinition, gqlerror.List) {
	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		return nil, nil, gqlerror.List{asGqlError(err)}
	}
	if errs := validator.Validate(e.schema, doc); len(errs) > 0 {
		return nil, nil, errs
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, nil, gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}
	}
	return doc, op, nil
}

// Execute runs a query or mutation and returns the response body.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	doc, op, errs := e.Parse(req)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}

	if op.Operation == ast.Subscription {
		return &Response{Errors: gqlerror.List{
			gqlerror.Errorf("subscriptions are only supported over the websocket transport"),
		}}
	}

	data := make(map[string]any)
	var errList gqlerror.List
	for _, field := range collectFields(doc, op.SelectionSet) {
		if field.Name == "__typename" {
			data[aliasOf(field)] = string(op.Operation)
			continue
		}

		args, argErr := e.argumentValues(field, req.Variables)
		if argErr != nil {
			errList = append(errList, argErr)
			continue
		}

		var (
			result any
			err    *gqlerror.Error
		)
		switch op.Operation {
		case ast.Mutation:
			result, err = e.resolver.resolveMutation(ctx, field.Name, args)
		default:
			result, err = e.resolver.resolveQuery(ctx, field.Name, args)
		}
		if err != nil {
			err.Path = ast.Path{ast.PathName(aliasOf(field))}
			errList = append(errList, err)
			data[aliasOf(field)] = nil
			continue
		}

		projected, projErr := projectValue(doc, result, field.SelectionSet)
		if projErr != nil {
			e.logger.Error("failed to project result", "field", field.Name, "error", projErr)
			errList = append(errList, gqlerror.Errorf("internal error resolving %s", field.Name))
			data[aliasOf(field)] = nil
			continue
		}
		data[aliasOf(field)] = projected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		e.logger.Error("failed to encode response", "error", err)
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("internal error encoding response")}}
	}
	return &Response{Data: raw, Errors: errList}
}

// argumentValues resolves the arguments of a field, applying schema
// defaults for omitted arguments.
func (e *Executor) argumentValues(field *ast.Field, vars map[string]any) (map[string]any, *gqlerror.Error) {
	args := make(map[string]any)
	if field.Definition == nil {
		return args, nil
	}

	for _, argDef := range field.Definition.Arguments {
		arg := field.Arguments.ForName(argDef.Name)
		if arg == nil {
			if argDef.DefaultValue != nil {
				v, err := argDef.DefaultValue.Value(nil)
				if err != nil {
					return nil, gqlerror.Errorf("invalid default for argument %q", argDef.Name)
				}
				args[argDef.Name] = v
			}
			continue
		}
		v, err := arg.Value.Value(vars)
		if err != nil {
			return nil, gqlerror.Errorf("invalid value for argument %q: %s", argDef.Name, err)
		}
		args[argDef.Name] = v
	}
	return args, nil
}

// collectFields flattens a selection set, expanding fragment spreads and
// inline fragments. The schema has no unions or interfaces, so type
// conditions never exclude a fragment.
func collectFields(doc *ast.QueryDocument, set ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, collectFields(doc, s.SelectionSet)...)
		case *ast.FragmentSpread:
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				fields = append(fields, collectFields(doc, frag.SelectionSet)...)
			}
		}
	}
	return fields
}

// projectValue reduces a resolver result to the client's selection set.
// The result is first flattened to its JSON shape so projection follows
// the same field names the schema exposes.
func projectValue(doc *ast.QueryDocument, result any, set ast.SelectionSet) (any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return project(doc, generic, set), nil
}

func project(doc *ast.QueryDocument, value any, set ast.SelectionSet) any {
	if len(set) == 0 || value == nil {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(set))
		for _, field := range collectFields(doc, set) {
			if field.Name == "__typename" {
				if field.ObjectDefinition != nil {
					out[aliasOf(field)] = field.ObjectDefinition.Name
				}
				continue
			}
			out[aliasOf(field)] = project(doc, v[field.Name], field.SelectionSet)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(doc, item, set)
		}
		return out
	default:
		return v
	}
}

func asGqlError(err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return gqlerror.Errorf("%s", err.Error())
}

func aliasOf(field *ast.Field) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}
