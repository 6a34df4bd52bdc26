package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrLinkInvalid is returned for tokens that are malformed or carry a bad signature.
	ErrLinkInvalid = errors.New("invalid download link")
	// ErrLinkExpired is returned for well-formed tokens past their expiry.
	ErrLinkExpired = errors.New("download link expired")
)

// PrivateNamespace is the prefix of stored paths that are only served with a
// signed download token.
const PrivateNamespace = "documents/"

// IsPrivate reports whether p lives under PrivateNamespace.
func IsPrivate(p string) bool {
	cleaned, err := CleanPath(p)
	if err != nil {
		return true
	}
	return strings.HasPrefix(cleaned, PrivateNamespace)
}

// SignedLink is a download token and its expiry.
type SignedLink struct {
	Token     string
	ExpiresAt time.Time
}

// DownloadSigner creates and validates signed download tokens binding an
// owner to one stored path.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloadSigner constructs a signer with the provided secret and TTL.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for ownerID to fetch relPath.
func (s *DownloadSigner) Sign(ownerID, relPath string) (SignedLink, error) {
	if ownerID == "" || relPath == "" || strings.Contains(ownerID, ".") {
		return SignedLink{}, fmt.Errorf("owner and path required")
	}
	if len(s.secret) == 0 {
		return SignedLink{}, fmt.Errorf("signing secret missing")
	}
	cleaned, err := CleanPath(relPath)
	if err != nil {
		return SignedLink{}, err
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(cleaned))
	token := strings.Join([]string{ownerID, ts, encodedPath, s.signature(ownerID, ts, encodedPath)}, ".")
	return SignedLink{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify validates a token and returns the owner and path it was issued for.
func (s *DownloadSigner) Verify(token string) (ownerID, relPath string, err error) {
	if s == nil {
		return "", "", ErrLinkInvalid
	}
	parts := strings.Split(token, ".")
	if len(parts) != 4 || len(s.secret) == 0 {
		return "", "", ErrLinkInvalid
	}
	ownerID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.signature(ownerID, ts, encodedPath)), []byte(signature)) {
		return "", "", ErrLinkInvalid
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", ErrLinkInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", ErrLinkInvalid
	}
	if !s.now().Before(time.Unix(expUnix, 0)) {
		return "", "", ErrLinkExpired
	}
	return ownerID, string(rawPath), nil
}

func (s *DownloadSigner) signature(ownerID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ownerID + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
