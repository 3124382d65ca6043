package common

import "math/rand/v2"

// Alphanumeric is the 62-symbol alphabet used for redemption codes.
const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns a string of the given size with every symbol drawn
// uniformly from alphabet. It is not suitable for secrets that must resist
// guessing over a long time window.
//
// An empty alphabet or non-positive size yields an empty string.
func RandomString(size int, alphabet string) string {
	if size <= 0 || alphabet == "" {
		return ""
	}

	b := make([]byte, size)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}

	return string(b)
}
