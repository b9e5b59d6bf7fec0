package exchangeclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPEM(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func TestJWTSigner_SignWS_HasExpectedClaims(t *testing.T) {
	signer, err := NewJWTSigner("test-key", testPEM(t))
	require.NoError(t, err)

	tokenStr, err := signer.SignWS()
	require.NoError(t, err)

	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)

	assert.Equal(t, "test-key", claims["sub"])
	assert.Equal(t, "coinbase-cloud", claims["iss"])
	aud, ok := claims["aud"].([]any)
	require.True(t, ok)
	assert.Equal(t, "public_websocket_api", aud[0])
	assert.Equal(t, "test-key", token.Header["kid"])
	assert.NotEmpty(t, token.Header["nonce"])
}

func TestJWTSigner_SignREST_EmbedsURI(t *testing.T) {
	signer, err := NewJWTSigner("test-key", testPEM(t))
	require.NoError(t, err)

	tokenStr, err := signer.SignREST("GET", "api.coinbase.com", "/api/v3/brokerage/accounts")
	require.NoError(t, err)

	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "GET api.coinbase.com/api/v3/brokerage/accounts", claims["uri"])
}

func TestPaperClient_MarketOrderBuy_AppliesSlippage(t *testing.T) {
	client := NewPaperClient(10) // 10 bps
	client.SetPrice("BTC-USD", 100.0)

	result, err := client.MarketOrderBuy(context.Background(), "BTC-USD", 50.0)
	require.NoError(t, err)
	assert.Equal(t, "FILLED", result.Status)
	assert.Greater(t, result.FillPrice, 100.0)
	assert.InDelta(t, 0.5, result.FilledQty, 0.01)
}

func TestPaperClient_MarketOrderSell_AppliesNegativeSlippage(t *testing.T) {
	client := NewPaperClient(10)
	client.SetPrice("BTC-USD", 100.0)

	result, err := client.MarketOrderSell(context.Background(), "BTC-USD", 1.0)
	require.NoError(t, err)
	assert.Less(t, result.FillPrice, 100.0)
}

func TestPaperClient_GetProduct_RequiresSeededPrice(t *testing.T) {
	client := NewPaperClient(0)
	_, err := client.GetProduct(context.Background(), "NOPE-USD")
	assert.Error(t, err)
}

func TestPaperClient_GetOrder_RoundTrips(t *testing.T) {
	client := NewPaperClient(0)
	client.SetPrice("ETH-USD", 2000.0)
	result, err := client.MarketOrderBuy(context.Background(), "ETH-USD", 200.0)
	require.NoError(t, err)

	fetched, err := client.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, result, fetched)
}
