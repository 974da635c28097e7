package internal

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomString returns n characters drawn uniformly from alphabet using
// crypto/rand.
func RandomString(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", nil
	}

	max := big.NewInt(int64(len(alphabet)))
	result := make([]byte, n)

	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("can't read random data: %w", err)
		}
		result[i] = alphabet[idx.Int64()]
	}

	return string(result), nil
}

// RandomInt returns a uniform integer in [0, n).
func RandomInt(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("can't read random data: %w", err)
	}

	return int(v.Int64()), nil
}

// RandomPerm returns k distinct integers from [0, n) in random order.
func RandomPerm(n, k int) ([]int, error) {
	if k > n {
		k = n
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}

	for i := 0; i < k; i++ {
		j, err := RandomInt(n - i)
		if err != nil {
			return nil, err
		}
		pool[i], pool[i+j] = pool[i+j], pool[i]
	}

	return pool[:k], nil
}
