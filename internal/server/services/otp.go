// Package services contains the server-side business logic: the OTP login
// cycle, the login dispatcher, and the peer handshake protocol.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/auth"
	"github.com/dmitrijs2005/passlink/internal/server/config"
	"github.com/dmitrijs2005/passlink/internal/server/creds"
	"github.com/dmitrijs2005/passlink/internal/server/models"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/users"
)

// continuationTokenBytes is the random part of a continuation token; the
// issue timestamp rides along after a dot so expiry needs no extra column.
const continuationTokenBytes = 16

const codeMailSubject = "Your login code"

// OTPService runs the one-time-code login cycle:
// request (mint code + continuation token, mail the code) and
// confirm (verify both, consume the cycle, mint a signed token).
type OTPService struct {
	db             *sql.DB
	repos          repomanager.RepositoryManager
	hasher         *creds.Hasher
	codec          *auth.Codec
	mailer         Mailer
	logger         logging.Logger
	codeAlphabet   string
	codeLength     int
	expiration     time.Duration
	randomDelayMax time.Duration
}

func NewOTPService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config,
	codec *auth.Codec, mailer Mailer, logger logging.Logger) *OTPService {
	return &OTPService{
		db:             db,
		repos:          rm,
		hasher:         creds.NewHasher(cfg.HashTimeCost),
		codec:          codec,
		mailer:         mailer,
		logger:         logger.With("module", "otp"),
		codeAlphabet:   cfg.OTPCodeAlphabet,
		codeLength:     cfg.OTPCodeLength,
		expiration:     cfg.OTPExpiration,
		randomDelayMax: cfg.RandomDelayMax,
	}
}

// Request starts an OTP cycle for the given user: a fresh continuation token
// and one-time code are generated, their hashes installed via a conditional
// update keyed on the row as it was read, and the code is mailed. The
// continuation token is returned to the caller; the code only travels by
// mail and is never logged.
func (s *OTPService) Request(ctx context.Context, user *models.User) (string, error) {
	token, err := creds.GenerateToken(continuationTokenBytes)
	if err != nil {
		return "", common.ErrorInternal
	}
	token = token + "." + strconv.FormatInt(time.Now().UnixMilli(), 10)

	code, err := creds.GenerateCode(s.codeAlphabet, s.codeLength)
	if err != nil {
		return "", common.ErrorInternal
	}

	secretHash, err := s.hasher.Hash(code)
	if err != nil {
		return "", common.ErrorInternal
	}
	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return "", common.ErrorInternal
	}

	repo := s.repos.Users(s.db)
	if err := repo.BeginLogin(ctx, user.ID, users.SnapshotOf(user), secretHash, tokenHash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		s.logger.Error(ctx, "begin login failed", "error", err)
		return "", common.ErrorInternal
	}

	if err := s.mailer.Send(ctx, user.Email, codeMailSubject, codeMailBody(code)); err != nil {
		// The pending hashes stay in place: the next request overwrites
		// them, and an unreceived code cannot be confirmed by anyone.
		s.logger.Error(ctx, "code delivery failed", "error", err)
		return "", common.ErrorInternal
	}

	_ = creds.RandomDelay(ctx, s.randomDelayMax)

	return token, nil
}

// Confirm completes an OTP cycle: the continuation token's embedded
// timestamp is checked against the expiration window, both artifacts are
// verified against their stored hashes, and the cycle is consumed with a
// conditional update so a second confirmation can never succeed. Token and
// code mismatches are indistinguishable to the caller.
func (s *OTPService) Confirm(ctx context.Context, user *models.User, token, code string, ip *string) (string, error) {
	issuedAt, err := parseContinuationToken(token)
	if err != nil {
		return "", common.ErrorValidation
	}
	if time.Since(issuedAt) > s.expiration {
		return "", common.ErrorLoginExpired
	}

	if !user.HasPendingLogin() {
		return "", common.ErrorNotFound
	}

	tokenOK, err := s.hasher.Verify(token, *user.TokenHash)
	if err != nil {
		s.logger.Error(ctx, "token hash verification failed", "error", err)
		return "", common.ErrorInternal
	}
	codeOK, err := s.hasher.Verify(code, *user.SecretHash)
	if err != nil {
		s.logger.Error(ctx, "code hash verification failed", "error", err)
		return "", common.ErrorInternal
	}
	if !tokenOK || !codeOK {
		return "", common.ErrorInvalidCode
	}

	repo := s.repos.Users(s.db)
	if err := repo.CompleteLogin(ctx, user.ID, users.SnapshotOf(user), time.Now(), ip); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		s.logger.Error(ctx, "complete login failed", "error", err)
		return "", common.ErrorInternal
	}

	method, err := s.repos.AuthMethods(s.db).GetByID(ctx, user.AuthMethodID)
	if err != nil {
		s.logger.Error(ctx, "auth method lookup failed", "error", err)
		return "", common.ErrorInternal
	}

	signed, err := s.codec.Issue(user.ID, user.Email, user.Name, method.Name)
	if err != nil {
		s.logger.Error(ctx, "token issuance failed", "error", err)
		return "", common.ErrorInternal
	}

	s.logger.Info(ctx, "login confirmed", "user_id", user.ID)
	return signed, nil
}

// EqualizeDelay is the same random suspension Request performs, exposed so
// the dispatcher can apply it on the user-not-found path and keep the two
// paths indistinguishable by latency.
func (s *OTPService) EqualizeDelay(ctx context.Context) {
	_ = creds.RandomDelay(ctx, s.randomDelayMax)
}

// parseContinuationToken recovers the issue time embedded in a continuation
// token of the form <hex>.<epochMillis>.
func parseContinuationToken(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" {
		return time.Time{}, fmt.Errorf("malformed continuation token")
	}
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed continuation token timestamp")
	}
	return time.UnixMilli(millis), nil
}

func codeMailBody(code string) string {
	return "<p>Your one-time login code:</p><p><b>" + code + "</b></p>" +
		"<p>If you did not request it, ignore this message.</p>"
}
