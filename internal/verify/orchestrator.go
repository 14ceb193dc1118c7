package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whalegate/internal/ledger"
	"whalegate/internal/models"
	"whalegate/internal/nonce"
	"whalegate/internal/signature"

	"go.uber.org/zap"
)

// SignatureVerifier validates a detached signature over the canonical
// challenge message.
type SignatureVerifier interface {
	Verify(message []byte, signatureText, walletAddress string) bool
}

// BalanceOracle reports a wallet's token balance. Errors mean the
// lookup failed, never that the balance is zero.
type BalanceOracle interface {
	TokenBalance(ctx context.Context, wallet string) (uint64, error)
}

// InviteIssuer mints a single-use, time-limited channel invite.
type InviteIssuer interface {
	CreateInvite(ctx context.Context, ttl time.Duration) (string, error)
}

type Request struct {
	WalletAddress string
	Signature     string
	Nonce         string
	RequestIP     string
	UserAgent     string
}

type Result struct {
	InviteLink string
	Balance    uint64
	ExpiresIn  time.Duration
}

// Orchestrator runs the verification flow: nonce consumption, signature
// check, balance gate, invite issuance, record persistence. The
// ledger's unique insert is the linearization point for "one invite per
// wallet"; the early read only avoids wasted oracle calls.
type Orchestrator struct {
	nonces    *nonce.Authority
	verifier  SignatureVerifier
	oracle    BalanceOracle
	issuer    InviteIssuer
	ledger    ledger.Ledger
	threshold uint64
	inviteTTL time.Duration
	log       *zap.Logger
}

func NewOrchestrator(
	nonces *nonce.Authority,
	verifier SignatureVerifier,
	oracle BalanceOracle,
	issuer InviteIssuer,
	led ledger.Ledger,
	threshold uint64,
	inviteTTL time.Duration,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		nonces:    nonces,
		verifier:  verifier,
		oracle:    oracle,
		issuer:    issuer,
		ledger:    led,
		threshold: threshold,
		inviteTTL: inviteTTL,
		log:       log,
	}
}

func (o *Orchestrator) Verify(ctx context.Context, req Request) (*Result, error) {
	// Fast-path idempotency read. Best effort only; the insert below
	// is what actually enforces uniqueness.
	existing, err := o.ledger.FindByWallet(ctx, req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyVerified
	}

	// Nonce consumption is intentionally sacrificed on later failures:
	// a failed attempt burns its nonce so it can't be probed again.
	if err := o.nonces.Consume(ctx, req.Nonce); err != nil {
		o.log.Info("nonce rejected",
			zap.String("wallet", req.WalletAddress),
			zap.Error(err))
		return nil, &NonceError{Cause: err}
	}

	message := signature.ChallengeMessage(req.Nonce)
	if !o.verifier.Verify(message, req.Signature, req.WalletAddress) {
		o.log.Info("signature rejected",
			zap.String("wallet", req.WalletAddress),
			zap.String("signature", signature.Preview(req.Signature)))
		return nil, ErrInvalidSignature
	}

	balance, err := o.oracle.TokenBalance(ctx, req.WalletAddress)
	if err != nil {
		return nil, &UpstreamError{Op: "balance oracle", Err: err}
	}
	if balance < o.threshold {
		return nil, &InsufficientBalanceError{Balance: balance, Required: o.threshold}
	}

	// From invite issuance onward the flow must not be interrupted by
	// the caller going away: a canceled insert would leave a minted
	// invite with no record. Detach from the request context.
	persistCtx := context.WithoutCancel(ctx)

	inviteLink, err := o.issuer.CreateInvite(persistCtx, o.inviteTTL)
	if err != nil {
		return nil, &UpstreamError{Op: "invite issuer", Err: err}
	}

	now := time.Now()
	rec := &models.VerificationRecord{
		WalletAddress:    req.WalletAddress,
		InviteLink:       inviteLink,
		Balance:          balance,
		IssuedAt:         now,
		InviteExpiresAt:  now.Add(o.inviteTTL),
		RequestIP:        req.RequestIP,
		RequestUserAgent: req.UserAgent,
	}
	if err := o.ledger.Insert(persistCtx, rec); err != nil {
		if errors.Is(err, ledger.ErrDuplicateWallet) {
			// Lost the race with a concurrent request for the same
			// wallet. The other invite stands; this one goes unused
			// and expires on its own.
			o.log.Warn("duplicate wallet insert lost race",
				zap.String("wallet", req.WalletAddress))
			return nil, ErrAlreadyVerified
		}
		return nil, fmt.Errorf("persist record: %w", err)
	}

	o.log.Info("wallet verified",
		zap.String("wallet", req.WalletAddress),
		zap.Uint64("balance", balance))

	return &Result{
		InviteLink: inviteLink,
		Balance:    balance,
		ExpiresIn:  o.inviteTTL,
	}, nil
}
