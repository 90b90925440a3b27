package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tradegate/signal-gateway/pkg/response"
)

// GinHandlers contains HTTP handlers for the token and credential endpoints.
type GinHandlers struct {
	service *Service
	tokens  *TokenService
}

func NewGinHandlers(service *Service, tokens *TokenService) *GinHandlers {
	return &GinHandlers{service: service, tokens: tokens}
}

// GenerateTokenHandler handles POST requests to exchange admin credentials
// for a JWT.
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds AdminCredentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.tokens.GenerateToken(creds)
		if err == ErrInvalidCredentials {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// issuedCredential is the one-time response shape exposing the secret.
type issuedCredential struct {
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

// CreateCredentialHandler issues a new signing credential. The secret is
// returned exactly once and never readable again.
func (h *GinHandlers) CreateCredentialHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := h.service.IssueCredential()
		if err != nil {
			log.Error().Err(err).Msg("failed to issue credential")
			response.InternalError(c, "failed to issue credential")
			return
		}
		log.Info().Str("key_id", cred.KeyID).Msg("credential issued")
		response.Success(c, issuedCredential{KeyID: cred.KeyID, Secret: cred.Secret})
	}
}

// RevokeCredentialHandler flags a credential as revoked.
// URL parameter: key_id
func (h *GinHandlers) RevokeCredentialHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyID := c.Param("key_id")
		if keyID == "" {
			response.BadRequest(c, "key_id is required")
			return
		}
		if err := h.service.Revoke(keyID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		log.Info().Str("key_id", keyID).Msg("credential revoked")
		response.Success(c, gin.H{"key_id": keyID, "revoked": true})
	}
}

// ListCredentialsHandler lists all credentials with secrets redacted.
func (h *GinHandlers) ListCredentialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := h.service.ListCredentials()
		response.Handle(c, creds, err)
	}
}
