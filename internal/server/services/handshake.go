package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/config"
	"github.com/dmitrijs2005/passlink/internal/server/creds"
	"github.com/dmitrijs2005/passlink/internal/server/models"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/peers"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/repomanager"
)

// HTTPDoer is the outbound HTTP surface the handshake needs: a single GET
// per peer per cycle, status code inspected for the 2xx boundary only.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HandshakeService rotates private tokens out to registered peers and
// validates the confirmations peers send back on their own rounds. The
// static bootstrap secret gates who may attempt a handshake at all; the
// rotating per-peer token proves which peer the caller is.
type HandshakeService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	client      HTTPDoer
	logger      logging.Logger
	secret      string
	tokenLength int
	timeout     time.Duration
}

func NewHandshakeService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config,
	client HTTPDoer, logger logging.Logger) *HandshakeService {
	if client == nil {
		client = &http.Client{Timeout: cfg.HandshakeTimeout}
	}
	return &HandshakeService{
		db:          db,
		repos:       rm,
		client:      client,
		logger:      logger.With("module", "handshake"),
		secret:      cfg.HandshakeSecret,
		tokenLength: cfg.HandshakeTokenLength,
		timeout:     cfg.HandshakeTimeout,
	}
}

// RotateAll pushes a fresh private token to every active peer. Rotations
// are independent: they run concurrently and a failure for one peer leaves
// the others untouched. Each push gets one attempt per cycle.
func (s *HandshakeService) RotateAll(ctx context.Context) error {
	if s.secret == "" {
		s.logger.Warn(ctx, "bootstrap secret not configured, skipping rotation")
		return nil
	}

	active, err := s.repos.Peers(s.db).ListActive(ctx)
	if err != nil {
		s.logger.Error(ctx, "listing active peers failed", "error", err)
		return common.ErrorInternal
	}

	var wg sync.WaitGroup
	for i := range active {
		peer := active[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.rotate(ctx, &peer)
		}()
	}
	wg.Wait()

	return nil
}

// rotate performs one outbound round for one peer: mint token, push it to
// the callback URL, and persist it only after the peer acknowledged with a
// 2xx. Any failure leaves the stored row unchanged.
func (s *HandshakeService) rotate(ctx context.Context, peer *models.AuthorizedAPI) {
	token, err := creds.GenerateToken(s.tokenLength)
	if err != nil {
		s.logger.Error(ctx, "token generation failed", "peer", peer.Name, "error", err)
		return
	}
	lastAccess := time.Now().UnixMilli()

	blob := base64.StdEncoding.EncodeToString(
		[]byte(peer.Name + "." + token + "." + strconv.FormatInt(lastAccess, 10)))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		peer.CallbackURL+"?params="+url.QueryEscape(blob), nil)
	if err != nil {
		s.logger.Error(ctx, "building rotation request failed", "peer", peer.Name, "error", err)
		return
	}
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn(ctx, "rotation push failed", "peer", peer.Name, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn(ctx, "peer rejected rotation", "peer", peer.Name, "status", resp.StatusCode)
		return
	}

	err = s.repos.Peers(s.db).CompleteRotation(ctx, peer.ID, peers.SnapshotOf(peer), token, lastAccess)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "rotation superseded concurrently", "peer", peer.Name)
			return
		}
		s.logger.Error(ctx, "persisting rotation failed", "peer", peer.Name, "error", err)
		return
	}

	s.logger.Info(ctx, "rotated peer token", "peer", peer.Name)
}

// Confirm validates an inbound confirmation round from a peer. The params
// blob must decode to exactly name.tokenHash.lastAccess; acceptance requires
// the fingerprint of the stored private token, the exact stored last_access
// and the stored name to all match, and any single mismatch yields the same
// generic rejection.
func (s *HandshakeService) Confirm(ctx context.Context, paramsBlob, bearer string) error {
	if paramsBlob == "" || bearer == "" {
		return common.ErrorValidation
	}
	if s.secret == "" ||
		subtle.ConstantTimeCompare([]byte(bearer), []byte(s.secret)) != 1 {
		return common.ErrorUnauthorized
	}

	decoded, err := base64.StdEncoding.DecodeString(paramsBlob)
	if err != nil {
		return common.ErrorValidation
	}

	fields := strings.Split(string(decoded), ".")
	if len(fields) != 3 {
		return common.ErrorMalformedParams
	}

	name, claimedHash, claimedAccessRaw := fields[0], fields[1], fields[2]
	if name == "" || claimedHash == "" || claimedAccessRaw == "" {
		return common.ErrorValidation
	}
	claimedAccess, err := strconv.ParseInt(claimedAccessRaw, 10, 64)
	if err != nil {
		return common.ErrorValidation
	}

	repo := s.repos.Peers(s.db)
	peer, err := repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorValidation
		}
		s.logger.Error(ctx, "peer lookup failed", "error", err)
		return common.ErrorInternal
	}

	// All three conditions fold into one verdict so the response never
	// tells the caller which one failed.
	match := peer.PrivateToken != nil &&
		subtle.ConstantTimeCompare(
			[]byte(creds.FingerprintToken(*peer.PrivateToken)), []byte(claimedHash)) == 1
	match = match && claimedAccess == peer.LastAccess
	match = match && name == peer.Name

	if !match {
		s.logger.Warn(ctx, "handshake confirmation rejected", "peer", name)
		return common.ErrorValidation
	}

	if err := repo.MarkValidated(ctx, peer.ID, peers.SnapshotOf(peer)); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorValidation
		}
		s.logger.Error(ctx, "marking peer validated failed", "error", err)
		return common.ErrorInternal
	}

	s.logger.Info(ctx, "handshake confirmed", "peer", name)
	return nil
}
