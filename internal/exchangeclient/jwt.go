package exchangeclient

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtExpiry and audience match spec.md §6's WS auth contract: ES256,
// audience public_websocket_api, 120 s expiry. Grounded on
// guyghost-constantine's coinbase.HTTPClient.createJWT, generalized to
// build the WS-specific claim set with the audience field REST auth
// doesn't need.
const (
	jwtExpiry       = 120 * time.Second
	wsAudience      = "public_websocket_api"
	jwtIssuer       = "coinbase-cloud"
)

// JWTSigner builds ES256 JWTs for exchange authentication from an API key
// name and an EC private key in PEM form.
type JWTSigner struct {
	apiKeyName string
	privateKey any // *ecdsa.PrivateKey, parsed once at construction
}

// NewJWTSigner parses privateKeyPEM once and returns a reusable signer.
func NewJWTSigner(apiKeyName, privateKeyPEM string) (*JWTSigner, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("parse PEM block containing the private key")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse EC private key: %w", err)
	}
	return &JWTSigner{apiKeyName: apiKeyName, privateKey: key}, nil
}

// SignREST builds a JWT scoped to a single REST request, matching the
// "METHOD host/path" uri claim Coinbase-style APIs expect.
func (s *JWTSigner) SignREST(method, host, path string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.apiKeyName,
		"iss": jwtIssuer,
		"nbf": now.Unix(),
		"exp": now.Add(jwtExpiry).Unix(),
		"uri": fmt.Sprintf("%s %s%s", method, host, path),
	}
	return s.sign(claims)
}

// SignWS builds a JWT for the streaming candle channel, with the
// public_websocket_api audience spec.md §6 requires instead of a uri
// claim.
func (s *JWTSigner) SignWS() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.apiKeyName,
		"iss": jwtIssuer,
		"nbf": now.Unix(),
		"exp": now.Add(jwtExpiry).Unix(),
		"aud": []string{wsAudience},
	}
	return s.sign(claims)
}

func (s *JWTSigner) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.apiKeyName
	token.Header["nonce"] = uuid.New().String()

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
