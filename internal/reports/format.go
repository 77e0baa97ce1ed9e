package reports

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts as localized currency strings.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	symbol  string
	scale   int
}

// NewFormatter builds a Formatter for an ISO 4217 code and a BCP 47 locale.
func NewFormatter(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	p := message.NewPrinter(tag)
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{unit: unit, printer: p, symbol: p.Sprint(currency.Symbol(unit)), scale: scale}, nil
}

// Currency returns the ISO code of the formatter.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Format renders v with the currency symbol and the locale's separators.
func (f *Formatter) Format(v float64) string {
	return f.symbol + " " + f.printer.Sprint(number.Decimal(v, number.Scale(f.scale)))
}

func (f *Formatter) formatAll(values map[string]float64) map[string]string {
	if f == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = f.Format(v)
	}
	return out
}
