package random

import (
	"crypto/rand"
	"math/big"

	"github.com/normicyte/normicyte/internal/errors"
)

var allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Letters returns a cryptographically random string of n letters.
func Letters(n uint) (string, error) {
	letters := make([]rune, n)
	maxIndex := big.NewInt(int64(len(allowedLetters)))
	for i := range letters {
		letterIndex, err := rand.Int(rand.Reader, maxIndex)
		if err != nil {
			return "", errors.Wrap(err, "random index")
		}
		letters[i] = allowedLetters[letterIndex.Int64()]
	}
	return string(letters), nil
}
