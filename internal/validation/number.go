// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const orderNumberPrefix = "ORD"

// IsValidOrderNumber проверяет формат номера заказа: префикс ORD, дата в виде
// ГГММДД и порядковый номер минимум из четырёх цифр.
func IsValidOrderNumber(number string) bool {
	if !strings.HasPrefix(number, orderNumberPrefix) {
		return false
	}

	digits := number[len(orderNumberPrefix):]
	if len(digits) < 10 {
		return false
	}

	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	month := (digits[2]-'0')*10 + (digits[3] - '0')
	day := (digits[4]-'0')*10 + (digits[5] - '0')

	if month < 1 || month > 12 {
		return false
	}
	if day < 1 || day > 31 {
		return false
	}

	return true
}
