package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// AleEnv evaluates Ale expressions. The script is the body of a lambda
// taking the node input; it has no access to capabilities
type AleEnv struct {
	*compiler[data.Procedure]
	env *env.Environment
}

const (
	aleCacheSize      = 4096
	aleLambdaTemplate = "(lambda (input) %s)"
)

var (
	ErrAleNotProcedure = errors.New("not a procedure")
	ErrAleCompile      = errors.New("script compile error")
	ErrAleCall         = errors.New("error calling procedure")
)

var _ Environment = (*AleEnv)(nil)

// NewAleEnv creates an Ale environment with the core library bootstrapped
func NewAleEnv() *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	res := &AleEnv{env: e}
	res.compiler = newCompiler(aleCacheSize, res.compile)
	return res
}

// Execute calls the compiled lambda with the input and converts the result
// back into JSON values
func (e *AleEnv) Execute(
	_ context.Context, node *api.Node, input, loop any, _ *Capabilities,
) (any, any, error) {
	proc, err := e.Compile(node.Script)
	if err != nil {
		return nil, loop, err
	}

	arg := jsonToAle(normalizeJSON(input))
	res, err := catchPanic(ErrAleCall, func() (ale.Value, error) {
		return proc.Call(arg), nil
	})
	if err != nil {
		return nil, loop, err
	}
	return aleToJSON(res), loop, nil
}

func (e *AleEnv) compile(script string) (data.Procedure, error) {
	src := fmt.Sprintf(aleLambdaTemplate, script)

	return catchPanic(ErrAleCompile,
		func() (data.Procedure, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(src))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAleCompile, err)
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf("%w, got: %T", ErrAleNotProcedure, res)
			}
			return proc, nil
		},
	)
}

func jsonToAle(value any) ale.Value {
	switch v := value.(type) {
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		if v == float64(int64(v)) {
			return data.Integer(int64(v))
		}
		return data.Float(v)
	case []any:
		vec := make(data.Vector, len(v))
		for i, item := range v {
			vec[i] = jsonToAle(item)
		}
		return vec
	case map[string]any:
		obj := data.NewObject()
		for k, val := range v {
			pair := data.NewCons(data.Keyword(k), jsonToAle(val))
			obj = obj.Put(pair).(*data.Object)
		}
		return obj
	case nil:
		return data.Null
	default:
		return data.String(fmt.Sprintf("%v", v))
	}
}

func aleToJSON(value ale.Value) any {
	switch v := value.(type) {
	case data.Bool:
		return bool(v)
	case data.String:
		return string(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		res := make([]any, len(v))
		for i, item := range v {
			res[i] = aleToJSON(item)
		}
		return res
	case *data.List:
		return aleListToJSON(v)
	case *data.Object:
		res := map[string]any{}
		for _, pair := range v.Pairs() {
			key := fmt.Sprintf("%v", aleToJSON(pair.Car()))
			res[key] = aleToJSON(pair.Cdr())
		}
		return res
	default:
		if value == data.Null {
			return nil
		}
		return fmt.Sprintf("%v", v)
	}
}

func aleListToJSON(list *data.List) []any {
	res := []any{}
	for l := list; !l.IsEmpty(); {
		head, tail, ok := l.Split()
		if !ok {
			break
		}
		res = append(res, aleToJSON(head))
		next, ok := tail.(*data.List)
		if !ok {
			break
		}
		l = next
	}
	return res
}
