package domain

// MinRefundAmount — минимальная сумма возврата в минимальных единицах.
const MinRefundAmount int64 = 100

// RemainingRefundable возвращает сумму, которую ещё можно вернуть.
func RemainingRefundable(amount, amountRefunded int64) int64 {
	if remaining := amount - amountRefunded; remaining > 0 {
		return remaining
	}
	return 0
}

// RefundAmount вычисляет сумму возврата.
// Без requested возвращается весь остаток. Запрошенная сумма ограничивается
// остатком, а суммы меньше MinRefundAmount поднимаются до него, даже если это
// больше запрошенного или больше остатка.
func RefundAmount(requested *int64, remaining int64) int64 {
	amount := remaining
	if requested != nil && *requested < remaining {
		amount = *requested
	}
	if amount < MinRefundAmount {
		amount = MinRefundAmount
	}
	return amount
}
