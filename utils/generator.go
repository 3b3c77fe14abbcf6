package utils

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	referenceLength   = 8
	referenceAttempts = 10
	letterBytes       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMu     sync.Mutex
)

func randomCode(n int) string {
	randMu.Lock()
	defer randMu.Unlock()

	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
	}
	return string(b)
}

// GenerateBookingReference returns a short human-readable reference such as
// "BK-7Q2X9ARM" that taken reports as unused.
func GenerateBookingReference(taken func(code string) (bool, error)) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		code := "BK-" + randomCode(referenceLength)
		exists, err := taken(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free booking reference after %d attempts", referenceAttempts)
}
