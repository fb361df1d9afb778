package pricing

// divRoundHalfEven divides num by den in integer minor units, rounding
// half-to-even. Money never touches floating point.
func divRoundHalfEven(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	q := num / den
	r := num % den
	if r == 0 {
		return q
	}
	switch {
	case 2*r < den:
		return q
	case 2*r > den:
		return q + 1
	default:
		// Exactly half: round to the even quotient.
		if q%2 == 0 {
			return q
		}
		return q + 1
	}
}

// splitDeposit returns (deposit, balance) for a total and deposit percent.
// The deposit is banker's-rounded; the balance absorbs the residual cent
// so the two always sum exactly to the total.
func splitDeposit(totalCents int64, depositPercent int) (int64, int64) {
	deposit := divRoundHalfEven(totalCents*int64(depositPercent), 100)
	return deposit, totalCents - deposit
}
