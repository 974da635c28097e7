// Package expressions is the CEL environment for gate conditions. A condition
// decides, per request, whether a matched route actually demands a
// challenge.
package expressions

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// NewEnvironment creates the CEL environment conditions are checked against,
// so that broken expressions fail when the policy is loaded rather than on
// the first request.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),

		cel.DefaultUTCTimeZone(true),

		cel.Variable("remoteAddress", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("userAgent", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("challengeType", cel.StringType),
	)
}

// Compile turns a checked AST into a Program.
func Compile(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(
		ast,
		cel.EvalOptions(
			cel.OptOptimize,
		),
	)
}
