package tracker

import (
	"sync"

	"spesevoce/internal/core"
)

// Preference is the process-wide default currency. It is read whenever a
// transcript does not name a currency.
type Preference struct {
	mu  sync.RWMutex
	cur core.Currency
}

// NewPreference starts at initial, or USD when initial is not selectable.
func NewPreference(initial core.Currency) *Preference {
	if _, err := core.ParseCurrency(string(initial)); err != nil {
		initial = core.USD
	}
	return &Preference{cur: initial}
}

func (p *Preference) Currency() core.Currency {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur
}

// Set accepts exactly "USD" or "NGN". Anything else leaves the preference
// unchanged and returns core.ErrInvalidCurrency.
func (p *Preference) Set(raw string) (core.Currency, error) {
	c, err := core.ParseCurrency(raw)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.cur = c
	p.mu.Unlock()
	return c, nil
}
