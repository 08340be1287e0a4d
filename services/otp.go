package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"smart-splitter-backend/database"
)

const otpTTL = 10 * time.Minute

var ErrOTPUnavailable = errors.New("otp service unavailable")

func otpKey(phone string) string {
	return "otp:" + phone
}

// GenerateOTP creates a six digit code for the phone number and stores it
// in Redis with a ten minute expiry, replacing any previous code.
func GenerateOTP(ctx context.Context, phone string) (string, error) {
	if database.Redis == nil {
		return "", ErrOTPUnavailable
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := database.Redis.Set(ctx, otpKey(phone), code, otpTTL).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyOTP checks the submitted code and consumes it on success.
func VerifyOTP(ctx context.Context, phone string, code string) (bool, error) {
	if database.Redis == nil {
		return false, ErrOTPUnavailable
	}

	stored, err := database.Redis.Get(ctx, otpKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if stored != code {
		return false, nil
	}

	database.Redis.Del(ctx, otpKey(phone))
	return true, nil
}
