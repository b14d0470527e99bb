package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"golang.org/x/net/html"
)

const marginPrefix = "margin-config:"

// DefaultCurrency is used when a margin config omits it.
const DefaultCurrency = "ARS"

var ErrInvalidMargin = errors.New("invalid margin config")

// MarginConfig is the pricing block kept inside a budget description as
// <!--margin-config:{json}-->.
type MarginConfig struct {
	BaseCost      float64 `json:"baseCost"`
	MarginPercent float64 `json:"marginPercent"`
	Currency      string  `json:"currency"`
}

func (m MarginConfig) Validate() error {
	if m.BaseCost < 0 || m.MarginPercent < 0 || m.MarginPercent > 1000 {
		return ErrInvalidMargin
	}
	return nil
}

// FinalPrice is the base cost plus margin, rounded to cents.
func (m MarginConfig) FinalPrice() float64 {
	return math.Round(m.BaseCost*(1+m.MarginPercent/100)*100) / 100
}

// ExtractMarginConfig finds the first margin-config comment in description.
// It returns nil when there is none or when its JSON is malformed.
func ExtractMarginConfig(description string) *MarginConfig {
	z := html.NewTokenizer(strings.NewReader(description))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.CommentToken:
			data := strings.TrimSpace(string(z.Token().Data))
			if !strings.HasPrefix(data, marginPrefix) {
				continue
			}
			var cfg MarginConfig
			if err := json.Unmarshal([]byte(strings.TrimPrefix(data, marginPrefix)), &cfg); err != nil {
				return nil
			}
			if cfg.Currency == "" {
				cfg.Currency = DefaultCurrency
			}
			return &cfg
		}
	}
}

// StripMarginConfig removes every margin-config comment and returns the
// remaining markup unchanged.
func StripMarginConfig(description string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(description))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := append([]byte(nil), z.Raw()...)
		if tt == html.CommentToken {
			data := strings.TrimSpace(string(z.Token().Data))
			if strings.HasPrefix(data, marginPrefix) {
				continue
			}
		}
		b.Write(raw)
	}
	return strings.TrimSpace(b.String())
}

// EmbedMarginConfig replaces any margin-config comment in description with cfg.
func EmbedMarginConfig(description string, cfg MarginConfig) (string, error) {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	body := StripMarginConfig(description)
	comment := "<!--" + marginPrefix + string(raw) + "-->"
	if body == "" {
		return comment, nil
	}
	return body + "\n" + comment, nil
}
