package handlers

import (
	"errors"
	"net/http"

	"whalegate/internal/ledger"
	"whalegate/internal/nonce"
	"whalegate/internal/rate"
	"whalegate/internal/signature"
	"whalegate/internal/verify"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type VerifyHandler struct {
	orch          *verify.Orchestrator
	nonces        *nonce.Authority
	ledger        ledger.Ledger
	limiter       rate.Limiter
	adminPassword string
	log           *zap.Logger
}

func RegisterRoutes(api *echo.Group, orch *verify.Orchestrator, nonces *nonce.Authority, led ledger.Ledger, limiter rate.Limiter, adminPassword string, log *zap.Logger) {
	h := &VerifyHandler{
		orch:          orch,
		nonces:        nonces,
		ledger:        led,
		limiter:       limiter,
		adminPassword: adminPassword,
		log:           log,
	}

	api.GET("/nonce", h.GetNonce)
	api.POST("/verify", h.Verify)
	api.GET("/admin/members", h.ListMembers)
	api.POST("/admin/delete", h.DeleteMember)
}

func (h *VerifyHandler) GetNonce(c echo.Context) error {
	if err := h.limiter.Allow(c.Request().Context(), c.RealIP()); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"success": false, "error": "too many requests"})
		}
		h.log.Error("rate limiter failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}

	value, err := h.nonces.Issue(c.Request().Context())
	if err != nil {
		h.log.Error("nonce issue failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"nonce":   value,
		"message": string(signature.ChallengeMessage(value)),
	})
}

func (h *VerifyHandler) Verify(c echo.Context) error {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Signature     string `json:"signature"`
		Nonce         string `json:"nonce"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "malformed request body"})
	}
	if req.WalletAddress == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "missing field: walletAddress"})
	}
	if req.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "missing field: signature"})
	}
	if req.Nonce == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "missing field: nonce"})
	}

	result, err := h.orch.Verify(c.Request().Context(), verify.Request{
		WalletAddress: req.WalletAddress,
		Signature:     req.Signature,
		Nonce:         req.Nonce,
		RequestIP:     c.RealIP(),
		UserAgent:     c.Request().UserAgent(),
	})
	if err != nil {
		return h.verifyError(c, err)
	}

	// The record is already persisted at this point; responding last
	// means a client disconnect can't leak an unrecorded invite.
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"inviteLink": result.InviteLink,
		"balance":    result.Balance,
		"expiresIn":  int(result.ExpiresIn.Seconds()),
	})
}

func (h *VerifyHandler) verifyError(c echo.Context, err error) error {
	var nonceErr *verify.NonceError
	var balanceErr *verify.InsufficientBalanceError
	var upstreamErr *verify.UpstreamError

	switch {
	case errors.Is(err, verify.ErrAlreadyVerified):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "wallet already verified"})
	case errors.As(err, &nonceErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid or expired nonce"})
	case errors.Is(err, verify.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid signature"})
	case errors.As(err, &balanceErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success":  false,
			"error":    "insufficient balance",
			"balance":  balanceErr.Balance,
			"required": balanceErr.Required,
		})
	case errors.As(err, &upstreamErr):
		h.log.Error("upstream failure", zap.String("op", upstreamErr.Op), zap.Error(upstreamErr.Err))
		return c.JSON(http.StatusBadGateway, echo.Map{"success": false, "error": "upstream service unavailable"})
	default:
		h.log.Error("verification failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}
}

func (h *VerifyHandler) ListMembers(c echo.Context) error {
	password := c.Request().Header.Get("X-Admin-Password")
	if password == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "admin credential required"})
	}
	if h.adminPassword == "" || password != h.adminPassword {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	members, err := h.ledger.ListAll(c.Request().Context())
	if err != nil {
		h.log.Error("member listing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "members": members})
}

func (h *VerifyHandler) DeleteMember(c echo.Context) error {
	var req struct {
		Wallet   string `json:"wallet"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "malformed request body"})
	}
	if h.adminPassword == "" || req.Password != h.adminPassword {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	deleted, err := h.ledger.DeleteByWallet(c.Request().Context(), req.Wallet)
	if err != nil {
		h.log.Error("member delete failed", zap.String("wallet", req.Wallet), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "deleted": deleted})
}
