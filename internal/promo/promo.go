// Package promo предоставляет справочник промокодов.
//
// Справочник внедряется в бизнес-логику как зависимость, чтобы источник
// правил (таблица БД, статический набор в тестах) можно было менять,
// не трогая оформление заказа.
package promo

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownCode возвращается, если промокод отсутствует в справочнике.
var ErrUnknownCode = errors.New("unknown promo code")

// Rule описывает правило скидки: размер в базисных пунктах и минимальная
// сумма корзины, с которой код применим.
type Rule struct {
	Code        string
	DiscountBP  int64
	MinSubtotal int64
}

// Registry определяет контракт поиска правила по промокоду.
type Registry interface {
	Rule(ctx context.Context, code string) (Rule, error)
}

// Static — справочник промокодов на основе фиксированного набора правил.
type Static struct {
	rules map[string]Rule
}

// NewStatic создаёт статический справочник из переданных правил.
// Коды сравниваются без учёта регистра.
func NewStatic(rules ...Rule) *Static {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[strings.ToUpper(r.Code)] = r
	}
	return &Static{rules: m}
}

// Rule возвращает правило для указанного кода.
func (s *Static) Rule(_ context.Context, code string) (Rule, error) {
	r, ok := s.rules[strings.ToUpper(code)]
	if !ok {
		return Rule{}, ErrUnknownCode
	}
	return r, nil
}
