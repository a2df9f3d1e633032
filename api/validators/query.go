package validators

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
)

// ParseDocKindParam parses a document kind from a path or query value.
func ParseDocKindParam(value string) (enums.DocKind, error) {
	kind, err := enums.ParseDocKind(strings.TrimSpace(value))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document kind").
			WithDetails(map[string]any{"kind": value})
	}
	return kind, nil
}

// ParseQueryDecimal parses a required non-negative decimal query parameter.
func ParseQueryDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").
			WithDetails(map[string]any{"field": key})
	}
	if value.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must not be negative").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
