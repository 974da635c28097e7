package config

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/TecharoHQ/codegate/lib/gate/expressions"
)

var (
	ErrExpressionOrListMustBeStringOrObject = errors.New("config: this must be a string or an object")
	ErrExpressionEmpty                      = errors.New("config: this expression is empty")
	ErrExpressionCantHaveBoth               = errors.New("config: expression block can't contain multiple expression types")
)

// ExpressionOrList is a CEL condition written either as a single string or as
// an object with an all (and) or any (or) list of clauses.
type ExpressionOrList struct {
	Expression string   `json:"-"`
	All        []string `json:"all,omitempty"`
	Any        []string `json:"any,omitempty"`
}

func (eol ExpressionOrList) Equal(rhs *ExpressionOrList) bool {
	return rhs != nil &&
		eol.Expression == rhs.Expression &&
		slices.Equal(eol.All, rhs.All) &&
		slices.Equal(eol.Any, rhs.Any)
}

func (eol ExpressionOrList) MarshalJSON() ([]byte, error) {
	switch {
	case len(eol.All) == 1 && len(eol.Any) == 0:
		return json.Marshal(eol.All[0])
	case len(eol.Any) == 1 && len(eol.All) == 0:
		return json.Marshal(eol.Any[0])
	case eol.Expression != "":
		return json.Marshal(eol.Expression)
	}

	type raw ExpressionOrList
	return json.Marshal(raw(eol))
}

func (eol *ExpressionOrList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return ErrExpressionOrListMustBeStringOrObject
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &eol.Expression)
	case '{':
		type raw ExpressionOrList
		var val raw
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		eol.All = val.All
		eol.Any = val.Any

		return nil
	}

	return ErrExpressionOrListMustBeStringOrObject
}

func (eol *ExpressionOrList) Valid() error {
	if eol.Expression == "" && len(eol.All) == 0 && len(eol.Any) == 0 {
		return ErrExpressionEmpty
	}

	if len(eol.All) != 0 && len(eol.Any) != 0 {
		return ErrExpressionCantHaveBoth
	}

	if eol.Expression != "" && (len(eol.All) != 0 || len(eol.Any) != 0) {
		return ErrExpressionCantHaveBoth
	}

	return nil
}

// Clauses returns the clauses and the operator joining them.
func (eol *ExpressionOrList) Clauses() (expressions.JoinOperator, []string) {
	switch {
	case eol.Expression != "":
		return expressions.JoinAnd, []string{eol.Expression}
	case len(eol.Any) != 0:
		return expressions.JoinOr, eol.Any
	default:
		return expressions.JoinAnd, eol.All
	}
}
