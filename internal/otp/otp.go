package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"impactflow/api/internal/mail"
	"impactflow/api/internal/models"
	"impactflow/api/internal/store"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// ErrInvalidCode is returned when the submitted code does not match the
// pending one or the pending code has expired.
var ErrInvalidCode = errors.New("invalid or expired code")

// Dispatcher issues and verifies one-time numeric codes. The pending code and
// its expiry live on the account record itself, so no extra collection is
// involved.
type Dispatcher struct {
	users       *store.Collection[models.User]
	sender      mail.Sender
	codeTTL     time.Duration
	sendTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewDispatcher(users *store.Collection[models.User], sender mail.Sender, codeTTL, sendTimeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		users:       users,
		sender:      sender,
		codeTTL:     codeTTL,
		sendTimeout: sendTimeout,
		log:         logger,
		now:         time.Now,
	}
}

// IssueCode generates a fresh 6-digit code, stores it with its expiry on the
// account and hands it to the delivery capability. Delivery failure is logged
// together with the code (the operational-log fallback channel) but never
// fails the call.
func (d *Dispatcher) IssueCode(ctx context.Context, accountID, destination string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiry := d.now().Add(d.codeTTL).UTC()

	if _, err := d.users.Update(ctx, accountID, store.Predicate{
		"pendingCode":       code,
		"pendingCodeExpiry": expiry,
	}); err != nil {
		return fmt.Errorf("store pending code: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	msg := mail.BuildOneTimeCodeEmail(destination, code, formatTTL(d.codeTTL))
	if err := d.sender.Send(sendCtx, msg); err != nil {
		d.log.Warn().Err(err).
			Str("destination", destination).
			Str("code", code).
			Msg("one-time code delivery failed")
	}
	return nil
}

// VerifyCode checks the submitted code (trimmed) against the pending one and
// its expiry. On success it clears both code fields, marks the account
// verified and returns the updated record. On failure the account is left
// unchanged and ErrInvalidCode is returned.
func (d *Dispatcher) VerifyCode(ctx context.Context, accountID, submitted string) (models.User, error) {
	user, err := d.users.FindByID(ctx, accountID)
	if err != nil {
		return models.User{}, err
	}

	submitted = strings.TrimSpace(submitted)
	if user.PendingCode == "" || submitted != user.PendingCode {
		return models.User{}, ErrInvalidCode
	}
	if user.PendingCodeExpiry == nil || d.now().After(*user.PendingCodeExpiry) {
		return models.User{}, ErrInvalidCode
	}

	updated, err := d.users.Update(ctx, accountID, store.Predicate{
		"isVerified":        true,
		"pendingCode":       "",
		"pendingCodeExpiry": nil,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("clear pending code: %w", err)
	}
	return updated, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(ttl.Minutes()))
	}
	return ttl.String()
}
