package coreuser

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"kyc-core/internal/auth"
	dErrors "kyc-core/pkg/domain-errors"
)

// Mock stands in for the core platform when no endpoint is configured. It
// accepts every non-empty token with deterministic data and a configurable
// latency to mimic real-world calls.
type Mock struct {
	Latency time.Duration
}

func (m Mock) CheckAuthToken(_ context.Context, token, _ string) (*auth.User, error) {
	time.Sleep(m.Latency)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUserTokenInvalid, "")
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	uid := int64(h.Sum32()%100000) + 1
	return &auth.User{
		ID:       uid,
		Username: fmt.Sprintf("dev-%d", uid),
		Email:    fmt.Sprintf("dev-%d@example.com", uid),
	}, nil
}

func (m Mock) GetSummary(_ context.Context, uid int64) (map[string]any, error) {
	time.Sleep(m.Latency)
	return map[string]any{
		"trade_vol_30d": []any{
			map[string]any{"curr": "Total (USD)", "vol": float64(uid % 1000 * 100)},
		},
	}, nil
}
