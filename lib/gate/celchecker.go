package gate

import (
	"fmt"
	"net/http"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/config"
	"github.com/TecharoHQ/codegate/lib/gate/expressions"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// CELChecker evaluates the condition of one challenge type.
type CELChecker struct {
	src     string
	program cel.Program
}

func NewCELChecker(cfg *config.ExpressionOrList) (*CELChecker, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	env, err := expressions.NewEnvironment()
	if err != nil {
		return nil, err
	}

	op, clauses := cfg.Clauses()

	ast, err := expressions.Join(env, op, clauses...)
	if err != nil {
		return nil, err
	}

	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: got %s", ErrConditionNotBool, checked.OutputType())
	}

	program, err := expressions.Compile(env, checked)
	if err != nil {
		return nil, fmt.Errorf("can't compile CEL program: %w", err)
	}

	data, _ := cfg.MarshalJSON()

	return &CELChecker{
		src:     string(data),
		program: program,
	}, nil
}

func (cc *CELChecker) Hash() string {
	return internal.FastHash(cc.src)
}

// Check reports whether the condition holds for r. p is the request path
// with the base prefix removed.
func (cc *CELChecker) Check(r *http.Request, t challenge.Type, p string) (bool, error) {
	result, _, err := cc.program.ContextEval(r.Context(), &celRequest{Request: r, t: t, path: p})
	if err != nil {
		return false, err
	}

	if val, ok := result.(types.Bool); ok {
		return bool(val), nil
	}

	return false, fmt.Errorf("%w: got %T", ErrConditionNotBool, result)
}

type celRequest struct {
	*http.Request
	t    challenge.Type
	path string
}

func (cr *celRequest) Parent() cel.Activation { return nil }

func (cr *celRequest) ResolveName(name string) (any, bool) {
	switch name {
	case "remoteAddress":
		return internal.RemoteIP(cr.Request), true
	case "host":
		return cr.Host, true
	case "method":
		return cr.Method, true
	case "userAgent":
		return cr.UserAgent(), true
	case "path":
		return cr.path, true
	case "query":
		return expressions.URLValues{Values: cr.URL.Query()}, true
	case "headers":
		return expressions.HTTPHeaders{Header: cr.Header}, true
	case "challengeType":
		return string(cr.t), true
	default:
		return nil, false
	}
}
