// Package turncred mints short-lived TURN credentials using the
// coturn-compatible TURN REST scheme:
//
//	username   = <unix expiry>:<session id>
//	credential = base64(hmac_sha1(shared secret, username))
//
// See https://datatracker.ietf.org/doc/html/draft-uberti-behave-turn-rest
package turncred

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

type Generator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGenerator(secret string, ttl time.Duration) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("shared secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Generator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (g *Generator) Generate(sessionID string) (Credentials, error) {
	if sessionID == "" {
		return Credentials{}, errors.New("session id is required")
	}

	expiry := g.now().UTC().Unix() + int64(g.ttl/time.Second)
	username := fmt.Sprintf("%d:%s", expiry, sessionID)

	mac := hmac.New(sha1.New, g.secret)
	mac.Write([]byte(username))

	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiryUnix: expiry,
	}, nil
}

// GenerateRandom mints credentials for a fresh random session id.
func (g *Generator) GenerateRandom() (Credentials, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Credentials{}, err
	}
	return g.Generate(hex.EncodeToString(b[:]))
}
