package loyalty

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// codeAttempts bounds the random-suffix retries before switching to the
// deterministic fallback.
const codeAttempts = 5

type existsFunc func(ctx context.Context, code string) (bool, error)

// fallbackSeq makes fallback suffixes unique even when two generations land
// on the same nanosecond.
var fallbackSeq atomic.Int64

// generateUniqueCode builds "<prefix>-<suffix>" codes: a bounded number of
// random suffixes checked against exists, then a monotonic fallback suffix
// unique by construction. ErrCodeGenerationExhausted is returned only if the
// fallback itself collides.
func generateUniqueCode(ctx context.Context, prefix string, exists existsFunc) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := prefix + "-" + randomSuffix()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	suffix := strings.ToUpper(strconv.FormatInt(time.Now().UnixNano()+fallbackSeq.Add(1), 36))
	code := prefix + "-" + suffix
	taken, err := exists(ctx, code)
	if err != nil {
		return "", fmt.Errorf("check code uniqueness: %w", err)
	}
	if taken {
		return "", ErrCodeGenerationExhausted
	}
	return code, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

// referralPrefix derives a stable prefix from the user id: its first four
// alphanumeric characters uppercased, padded with X for short ids.
func referralPrefix(userID string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(userID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			if sb.Len() >= 4 {
				break
			}
		}
	}
	for sb.Len() < 4 {
		sb.WriteByte('X')
	}
	return sb.String()
}

// redemptionCodePrefix is shared by all redemption codes.
const redemptionCodePrefix = "RDM"
