package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

var (
	ErrMissingKid = errors.New("invalid token: missing kid")
	ErrUnknownKid = errors.New("invalid token: unknown kid")
	ErrNoSubject  = errors.New("invalid token: missing sub")
)

// Struct for Cognito's JWKS JSON response
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// Verifier validates Cognito issued JWTs against the user pool's public keys.
type Verifier struct {
	issuer   string
	clientId string
	keys     map[string]*rsa.PublicKey
	mu       sync.RWMutex
}

func CognitoIssuer(region, userPoolId string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolId)
}

// NewVerifier builds a verifier for the given issuer. clientId may be empty,
// in which case the token audience is not checked.
func NewVerifier(issuer, clientId string, keys map[string]*rsa.PublicKey) *Verifier {
	if keys == nil {
		keys = make(map[string]*rsa.PublicKey)
	}
	return &Verifier{
		issuer:   issuer,
		clientId: clientId,
		keys:     keys,
	}
}

// LoadCognitoPublicKeys fetches the JWKS document of the issuer and replaces
// the verifier's key set.
func (v *Verifier) LoadCognitoPublicKeys(ctx context.Context, httpClient *http.Client) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.issuer+"/.well-known/jwks.json", nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load cognito public keys: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to load cognito public keys: status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode jwks: %w", err)
	}
	keys, err := parseJwks(set)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	logging.Info("cognito public keys loaded", zap.Int("count", len(keys)))
	return nil
}

func parseJwks(set jwks) (map[string]*rsa.PublicKey, error) {
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, key := range set.Keys {
		// Decode Base64URL (without padding) `n` and `e`
		nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			return nil, fmt.Errorf("invalid modulus for kid %s: %w", key.Kid, err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			return nil, fmt.Errorf("invalid exponent for kid %s: %w", key.Kid, err)
		}
		keys[key.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
	}
	return keys, nil
}

func (v *Verifier) key(kid string) (*rsa.PublicKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok := v.keys[kid]
	return key, ok
}

// ValidateJwt parses and verifies the token signature, issuer and expiry.
func (v *Verifier) ValidateJwt(tokenString string) (*jwt.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, ErrMissingKid
		}
		if key, found := v.key(kid); found {
			return key, nil
		}
		return nil, ErrUnknownKid
	}, opts...)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Authenticate resolves a bearer token to the user id it was issued for.
func (v *Verifier) Authenticate(_ context.Context, tokenString string) (string, error) {
	token, err := v.ValidateJwt(tokenString)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrNoSubject
	}
	if v.clientId != "" && !issuedTo(claims, v.clientId) {
		return "", fmt.Errorf("invalid token: issued to another client")
	}
	return Subject(claims)
}

// Access tokens carry client_id, id tokens carry aud.
func issuedTo(claims jwt.MapClaims, clientId string) bool {
	if id, ok := claims["client_id"].(string); ok {
		return id == clientId
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range aud {
		if a == clientId {
			return true
		}
	}
	return false
}

// Subject returns the sub claim, which is the stable Cognito user id.
func Subject(claims map[string]interface{}) (string, error) {
	userId, ok := claims["sub"].(string)
	if !ok || userId == "" {
		return "", ErrNoSubject
	}
	return userId, nil
}
