package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/repomanager"
)

// LoginRequest is the tagged union of the two login phases. The transport
// layer decides the phase while parsing (the schemas are disjoint); by the
// time a value reaches the dispatcher its shape is settled.
type LoginRequest interface {
	loginRequest()
	email() string
}

// RequestPhase asks for a one-time code to be sent.
type RequestPhase struct {
	Email string
}

// ConfirmPhase presents the continuation token and the received code.
type ConfirmPhase struct {
	Email string
	Token string
	Code  string
	IP    *string
}

func (RequestPhase) loginRequest() {}
func (ConfirmPhase) loginRequest() {}

func (r RequestPhase) email() string { return r.Email }
func (r ConfirmPhase) email() string { return r.Email }

// LoginResult carries the outcome of whichever phase ran: a continuation
// token after request-phase, a signed token after confirm-phase.
type LoginResult struct {
	ContinuationToken string
	SignedToken       string
}

// LoginService routes a login request to the strategy configured for the
// user. It has no side effects of its own; every cell of the
// {phase} x {method} matrix resolves to a delegate or an explicit error.
type LoginService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	otp    *OTPService
	logger logging.Logger
}

func NewLoginService(db *sql.DB, rm repomanager.RepositoryManager, otp *OTPService, logger logging.Logger) *LoginService {
	return &LoginService{
		db:     db,
		repos:  rm,
		otp:    otp,
		logger: logger.With("module", "login"),
	}
}

// Dispatch resolves the user's auth method and routes the request.
// An unknown email gets the same equalizing delay a real request-phase
// incurs before the not-found answer.
func (s *LoginService) Dispatch(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, req.email())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.otp.EqualizeDelay(ctx)
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	method, err := s.repos.AuthMethods(s.db).GetByID(ctx, user.AuthMethodID)
	if err != nil {
		s.logger.Error(ctx, "auth method lookup failed", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	switch method.Name {
	case common.MethodEmailCode:
		switch r := req.(type) {
		case RequestPhase:
			token, err := s.otp.Request(ctx, user)
			if err != nil {
				return nil, err
			}
			return &LoginResult{ContinuationToken: token}, nil
		case ConfirmPhase:
			signed, err := s.otp.Confirm(ctx, user, r.Token, r.Code, r.IP)
			if err != nil {
				return nil, err
			}
			return &LoginResult{SignedToken: signed}, nil
		default:
			return nil, common.ErrorValidation
		}
	case common.MethodPassword:
		return nil, common.ErrorUnimplemented
	default:
		s.logger.Warn(ctx, "unsupported auth method", "method", method.Name)
		return nil, common.ErrorValidation
	}
}
