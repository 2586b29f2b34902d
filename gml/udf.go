package gml

import (
	"fmt"
	"time"

	"github.com/lyzr/orchestrator/value"
	"github.com/robertkrimen/otto"
)

// UDFParam is one declared parameter of a user-defined function: a name and
// an optional default expression, evaluated against the caller's definition
// context when the argument is omitted.
type UDFParam struct {
	Name    string
	Default Expr // nil if no default
}

// ExpressionUDF is a `kind: expression` UDF: its body is GML,
// parsed once at registration and evaluated in a fresh child of the
// defining context on every call, with parameters bound positionally.
type ExpressionUDF struct {
	eval   *Evaluator
	params []UDFParam
	body   Expr
	defCtx *value.Context
}

// CompileExpressionUDF parses src as a GML block and returns a callable UDF
// bound to defCtx (typically the flow's root context).
func CompileExpressionUDF(eval *Evaluator, params []UDFParam, src string, defCtx *value.Context) (*ExpressionUDF, []*ParseError) {
	block, errs := ParseBlock(src)
	if len(errs) > 0 {
		return nil, errs
	}
	return &ExpressionUDF{eval: eval, params: params, body: block, defCtx: defCtx}, nil
}

func (u *ExpressionUDF) Call(args []value.Value) (value.Value, error) {
	child := u.defCtx.NewChild()
	if err := bindParams(u.eval, child, u.params, args); err != nil {
		return value.Undefined(), err
	}
	return u.eval.Eval(u.body, child)
}

func bindParams(eval *Evaluator, child *value.Context, params []UDFParam, args []value.Value) error {
	for i, p := range params {
		if i < len(args) && !args[i].IsUndefined() {
			child.Set(p.Name, args[i])
			continue
		}
		if p.Default != nil {
			v, err := eval.Eval(p.Default, child)
			if err != nil {
				return fmt.Errorf("gml: evaluating default for parameter %q: %w", p.Name, err)
			}
			child.Set(p.Name, v)
			continue
		}
		child.Set(p.Name, value.Undefined())
	}
	return nil
}

// JavascriptUDF is a `kind: javascript` UDF: its body runs in a pooled otto
// VM, each call getting a fresh VM (otto.Otto is not safe for concurrent
// reuse without resetting state between invocations).
type JavascriptUDF struct {
	code    string
	params  []UDFParam
	eval    *Evaluator
	defCtx  *value.Context
	timeout time.Duration
	pool    chan *otto.Otto
}

// CompileJavascriptUDF compiles src once (syntax-checked via a throwaway
// VM) and returns a callable backed by a small VM pool, mirroring the
// sandboxed-execution pattern used for plugin code elsewhere in the stack.
func CompileJavascriptUDF(eval *Evaluator, params []UDFParam, src string, defCtx *value.Context, poolSize int, timeout time.Duration) (*JavascriptUDF, error) {
	probe := otto.New()
	if _, err := probe.Compile("", src); err != nil {
		return nil, fmt.Errorf("gml: invalid javascript UDF body: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	u := &JavascriptUDF{code: src, params: params, eval: eval, defCtx: defCtx, timeout: timeout, pool: make(chan *otto.Otto, poolSize)}
	for i := 0; i < poolSize; i++ {
		u.pool <- otto.New()
	}
	return u, nil
}

func (u *JavascriptUDF) Call(args []value.Value) (value.Value, error) {
	var vm *otto.Otto
	select {
	case vm = <-u.pool:
	default:
		vm = otto.New()
	}
	defer func() {
		select {
		case u.pool <- otto.New():
		default:
		}
	}()

	for i, p := range u.params {
		var av value.Value
		if i < len(args) {
			av = args[i]
		} else if p.Default != nil {
			v, err := u.eval.Eval(p.Default, u.defCtx)
			if err != nil {
				return value.Undefined(), err
			}
			av = v
		} else {
			av = value.Undefined()
		}
		if err := vm.Set(p.Name, value.ToAny(av)); err != nil {
			return value.Undefined(), fmt.Errorf("gml: binding javascript UDF parameter %q: %w", p.Name, err)
		}
	}

	resultCh := make(chan struct {
		v   otto.Value
		err error
	}, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- struct {
					v   otto.Value
					err error
				}{err: fmt.Errorf("gml: javascript UDF panicked: %v", r)}
			}
		}()
		v, err := vm.Run(u.code)
		resultCh <- struct {
			v   otto.Value
			err error
		}{v: v, err: err}
	}()

	timeout := u.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case res := <-resultCh:
		if res.err != nil {
			return value.Undefined(), fmt.Errorf("gml: javascript UDF execution error: %w", res.err)
		}
		exported, err := res.v.Export()
		if err != nil {
			return value.Undefined(), fmt.Errorf("gml: exporting javascript UDF result: %w", err)
		}
		return value.FromAny(exported), nil
	case <-time.After(timeout):
		vm.Interrupt <- func() { panic("gml: javascript UDF execution timed out") }
		return value.Undefined(), fmt.Errorf("gml: javascript UDF exceeded %s timeout", timeout)
	}
}
