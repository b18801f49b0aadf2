// Package numbergen generates human-facing document numbers for sales,
// refunds and stock transfers.
package numbergen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Invoice builds a sale invoice number: {branchCode}-INV-{YYYYMMDD}-{suffix}.
func Invoice(branchCode string, at time.Time) string {
	return fmt.Sprintf("%s-INV-%s-%s", branchCode, at.UTC().Format("20060102"), suffix(6))
}

func Refund(at time.Time) string {
	return fmt.Sprintf("RFD-%s-%s", at.UTC().Format("20060102"), suffix(6))
}

func Transfer(at time.Time) string {
	return fmt.Sprintf("TRF-%s-%s", at.UTC().Format("20060102"), suffix(6))
}

func suffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unrecoverable; fall back to a
			// time-derived character so number generation never blocks a sale.
			out[i] = alphabet[int(time.Now().UnixNano())%len(alphabet)]
			continue
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
