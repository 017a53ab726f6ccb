package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReferenceID returns a fresh purchase reference of the form
// REF-XXXXXXXXX where each X is drawn uniformly from [A-Z0-9] using
// crypto/rand.  Uniqueness against existing purchases is the caller's
// concern.
func NewReferenceID() (string, error) {
	buf := make([]byte, 0, len(model.ReferencePrefix)+model.ReferenceLength)
	buf = append(buf, model.ReferencePrefix...)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < model.ReferenceLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf = append(buf, referenceAlphabet[n.Int64()])
	}
	return string(buf), nil
}
