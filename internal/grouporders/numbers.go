package grouporders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	numberAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	batchSuffixLength = 6
	orderNumberLength = 10
	maxNumberAttempts = 5
)

// NewBatchNumber returns a batch number of the form GB-YYYYMMDD-XXXXXX.
func NewBatchNumber(now time.Time) (string, error) {
	suffix, err := randomCode(batchSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GB-%s-%s", now.UTC().Format("20060102"), suffix), nil
}

// NewOrderNumber returns an order number of the form ORD-XXXXXXXXXX.
func NewOrderNumber() (string, error) {
	code, err := randomCode(orderNumberLength)
	if err != nil {
		return "", err
	}
	return "ORD-" + code, nil
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	for i, b := range buf {
		buf[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return string(buf), nil
}
