package jwtdecode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"crypto/rsa"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
)

const defaultCacheTTL = 30 * time.Minute

// KeySet fetches and caches the RSA public keys published by an identity
// provider at a JWKS URL, keyed by kid.
type KeySet struct {
	url        string
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt map[string]time.Time
	ttl       time.Duration
}

func NewKeySet(url string) *KeySet {
	return &KeySet{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       make(map[string]*rsa.PublicKey),
		fetchedAt:  make(map[string]time.Time),
		ttl:        defaultCacheTTL,
	}
}

// Key resolves the public key for the token's kid header, refreshing the
// cached key set from the provider when the entry is missing or stale.
func (ks *KeySet) Key(token *jwt.Token, forceRefresh bool) (*rsa.PublicKey, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("missing kid in token header")
	}

	ks.mu.RLock()
	key, exists := ks.keys[kid]
	fetchedAt, fetched := ks.fetchedAt[kid]
	ks.mu.RUnlock()

	if exists && fetched && time.Since(fetchedAt) <= ks.ttl && !forceRefresh {
		return key, nil
	}

	log.Debug().Str("url", ks.url).Msg("refreshing identity provider keys")

	if err := ks.refresh(); err != nil {
		return nil, err
	}

	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("no matching public key found")
}

func (ks *KeySet) refresh() error {
	resp, err := ks.httpClient.Get(ks.url)
	if err != nil {
		return fmt.Errorf("failed to fetch public keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch public keys: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read public key response: %w", err)
	}

	var keySet struct {
		Keys []struct {
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &keySet); err != nil {
		return fmt.Errorf("failed to parse public key JSON: %w", err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	for _, keyData := range keySet.Keys {
		nBytes, err := decodeBase64URL(keyData.N)
		if err != nil {
			return fmt.Errorf("failed to decode public key modulus: %w", err)
		}

		eBytes, err := decodeBase64URL(keyData.E)
		if err != nil {
			return fmt.Errorf("failed to decode public key exponent: %w", err)
		}

		ks.keys[keyData.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: bigEndianBytesToInt(eBytes),
		}
		ks.fetchedAt[keyData.Kid] = time.Now()
	}

	return nil
}

func decodeBase64URL(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(value)
}

func bigEndianBytesToInt(b []byte) int {
	result := 0
	for _, v := range b {
		result = result<<8 + int(v)
	}
	return result
}
