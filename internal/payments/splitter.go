// Package payments holds the price-splitting arithmetic and the pull-payment
// ledger used to disburse sale proceeds.
package payments

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dErrors "subreg/pkg/domain-errors"
)

// RateDenominator is the parts-per-million base for referral rates.
const RateDenominator = 1_000_000

// Split is the three-way disposition of a payment.
type Split struct {
	Refund   *big.Int // paid - price, back to the payer
	Referral *big.Int // floor(price * ratePpm / 1e6) to the referrer
	Owner    *big.Int // price - referral, to the administrator
}

// ComputeSplit divides a payment between payer refund, referrer, and
// administrator. The referral share is only paid when a nonzero rate is
// configured and the referrer is set and distinct from the administrator.
// Refund + Referral + Owner always equals paid.
func ComputeSplit(paid, price *big.Int, ratePpm uint32, referrer, administrator common.Address) (Split, error) {
	if paid.Cmp(price) < 0 {
		return Split{}, dErrors.New(dErrors.CodeInsufficientPayment, "paid amount below listing price")
	}

	refund := new(big.Int).Sub(paid, price)

	referral := new(big.Int)
	if ratePpm > 0 && referrer != (common.Address{}) && referrer != administrator {
		referral.Mul(price, big.NewInt(int64(ratePpm)))
		referral.Div(referral, big.NewInt(RateDenominator))
	}

	owner := new(big.Int).Sub(price, referral)
	return Split{Refund: refund, Referral: referral, Owner: owner}, nil
}
