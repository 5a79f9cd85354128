package core

import "fmt"

const (
	USD Currency = "USD"
	NGN Currency = "NGN"
)

// Currency is an ISO 4217 code. Only USD and NGN can be selected as a preference.
type Currency string

// ParseCurrency accepts only the exact codes that can be selected as a preference.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	switch c {
	case USD, NGN:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
}

// Symbol returns the display symbol. Anything that is not NGN renders as dollars.
func (c Currency) Symbol() string {
	if c == NGN {
		return "₦"
	}
	return "$"
}

func (c Currency) String() string {
	return string(c)
}
