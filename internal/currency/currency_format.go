package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "CA$",
	"CNY": "CN¥",
}

// MaxFractionDigits is the most fraction digits a price is ever rendered with.
const MaxFractionDigits = 20

type formatOptions struct {
	minFraction int
	maxFraction int
	override    bool
	symbol      bool
}

type FormatOption func(*formatOptions)

// WithFractionDigits overrides the currency's default fraction digits. Both
// bounds are clamped to 0..MaxFractionDigits and max is raised to min.
func WithFractionDigits(min, max int) FormatOption {
	return func(o *formatOptions) {
		min, max = clampFraction(min), clampFraction(max)
		if max < min {
			max = min
		}
		o.minFraction, o.maxFraction, o.override = min, max, true
	}
}

// WithoutSymbol prints the grouped number only.
func WithoutSymbol() FormatOption {
	return func(o *formatOptions) { o.symbol = false }
}

// FormatPrice converts an INR amount into target and renders it for display.
// A nil amount renders as "" so partially loaded data never shows "NaN".
// Codes that are not ISO 4217 fall back to "<CODE> <amount>".
func (s *Service) FormatPrice(amount *decimal.Decimal, target string, opts ...FormatOption) string {
	if amount == nil {
		return ""
	}

	code := normalize(target)
	if code == "" {
		code = Base
	}

	o := formatOptions{symbol: true}
	o.minFraction, o.maxFraction = defaultFractionDigits(code)
	for _, opt := range opts {
		opt(&o)
	}

	converted := s.Convert(*amount, code)
	number := fixed(converted, o.minFraction, o.maxFraction)

	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Sprintf("%s %s", code, number)
	}

	neg := strings.HasPrefix(number, "-")
	number = strings.TrimPrefix(number, "-")
	grouped := group(number, code == Base)

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	if o.symbol {
		if sym, ok := symbols[code]; ok {
			sb.WriteString(sym)
		} else {
			sb.WriteString(code)
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(grouped)
	return sb.String()
}

// Symbol returns the display symbol for code, or the code itself.
func Symbol(code string) string {
	code = normalize(code)
	if sym, ok := symbols[code]; ok {
		return sym
	}
	return code
}

// SupportedCurrencies lists the codes with a known rate, sorted.
func (s *Service) SupportedCurrencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.rates))
	for code := range s.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func clampFraction(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxFractionDigits:
		return MaxFractionDigits
	}
	return n
}

func defaultFractionDigits(code string) (int, int) {
	switch code {
	case "INR":
		return 0, 0
	case "USD":
		return 2, 2
	default:
		return 2, 2
	}
}

// fixed rounds half away from zero to max digits, then trims trailing
// zeros down to min digits.
func fixed(d decimal.Decimal, min, max int) string {
	out := d.StringFixed(int32(max))
	if max == min {
		return out
	}
	dot := strings.IndexByte(out, '.')
	if dot < 0 {
		return out
	}
	keep := len(out)
	for keep > dot+1+min && out[keep-1] == '0' {
		keep--
	}
	if keep == dot+1 {
		keep = dot
	}
	return out[:keep]
}

// group inserts thousands separators into an unsigned decimal string. Indian
// grouping keeps the last three integer digits together and pairs the rest
// (12,34,567); western grouping uses threes throughout.
func group(number string, indian bool) string {
	intPart, frac := number, ""
	if dot := strings.IndexByte(number, '.'); dot >= 0 {
		intPart, frac = number[:dot], number[dot:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}

	head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	size := 3
	if indian {
		size = 2
	}

	var parts []string
	for len(head) > size {
		parts = append([]string{head[len(head)-size:]}, parts...)
		head = head[:len(head)-size]
	}
	parts = append([]string{head}, parts...)
	parts = append(parts, tail)
	return strings.Join(parts, ",") + frac
}
