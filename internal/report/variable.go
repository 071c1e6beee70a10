package report

import (
	"github.com/rotisserie/eris"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// Variable selects the socio-environmental attribute for the correlation
// scatter. The set is fixed; anything else is a request error.
type Variable string

const (
	VarPrecipitation Variable = "precipitacao_mensal"
	VarSanitation    Variable = "saneamento_basico"
	VarHDI           Variable = "idh"
	VarIncome        Variable = "renda_media"
)

// Variables lists the selectable attributes in presentation order.
var Variables = []Variable{VarPrecipitation, VarSanitation, VarHDI, VarIncome}

// ParseVariable validates a user-supplied variable name.
func ParseVariable(s string) (Variable, error) {
	for _, v := range Variables {
		if string(v) == s {
			return v, nil
		}
	}
	return "", eris.Errorf("report: unknown variable %q", s)
}

// valueOf extracts the attribute from a structural reference entry.
func (v Variable) valueOf(s dataset.Structural) (float64, bool) {
	var f = s.Precipitation
	switch v {
	case VarSanitation:
		f = s.Sanitation
	case VarHDI:
		f = s.HDI
	case VarIncome:
		f = s.Income
	}
	return f.Float64, f.Valid
}
