package app

import (
	"context"
	"fmt"
	"math/rand"

	"bloodbridge_bot/internal/domain/emergency"
)

const shortCodeAttempts = 20

// newShortCode generates a 4-digit code not currently held by any active
// request. Codes scope to active requests only, so a fulfilled request's
// code can be reissued.
func newShortCode(ctx context.Context, requests emergency.Repository) (string, error) {
	for i := 0; i < shortCodeAttempts; i++ {
		code := fmt.Sprintf("%04d", 1000+rand.Intn(9000))
		exists, err := requests.ActiveShortCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique short code after %d attempts", shortCodeAttempts)
}

// newOTP generates the 6-digit code finalizing a donor confirmation.
func newOTP() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}
