package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/market-system/internal/promo"
)

// Rule возвращает правило промокода из таблицы promo_codes. Репозиторий
// реализует promo.Registry, поэтому справочник промокодов можно подменить,
// не затрагивая оформление заказа.
func (r *PostgresRepository) Rule(ctx context.Context, code string) (promo.Rule, error) {
	var rule promo.Rule
	err := r.pool.QueryRow(ctx,
		`SELECT code, discount_bp, min_subtotal FROM promo_codes WHERE code = UPPER($1)`,
		code,
	).Scan(&rule.Code, &rule.DiscountBP, &rule.MinSubtotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.Rule{}, promo.ErrUnknownCode
		}
		return promo.Rule{}, fmt.Errorf("get promo rule: %w", err)
	}
	return rule, nil
}
