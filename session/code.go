package session

import (
	"crypto/rand"
	"fmt"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode draws a 4-character uppercase alphanumeric session code,
// retrying against exists on collision. Session codes are not required to
// be cryptographically unguessable, so a small per-draw modulo bias
// against codeAlphabet's 36 symbols is acceptable; the source of
// randomness is still crypto/rand.
func GenerateCode(exists func(string) bool) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := drawCode()
		if err != nil {
			return "", err
		}
		if !exists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("session: exhausted code generation attempts")
}

func drawCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session code: %w", err)
	}
	out := make([]byte, 4)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
