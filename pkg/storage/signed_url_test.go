package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDownloadSignerSignAndVerify(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	link, err := signer.Sign("user-1", "/documents/cccd/front.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)
	require.False(t, link.ExpiresAt.IsZero())

	owner, path, err := signer.Verify(link.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", owner)
	require.Equal(t, "documents/cccd/front.jpg", path)
}

func TestDownloadSignerExpired(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Minute)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	link, err := signer.Sign("user-1", "documents/health/a.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, _, err = signer.Verify(link.Token)
	require.ErrorIs(t, err, ErrLinkExpired)
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	link, err := signer.Sign("user-1", "documents/cccd/front.jpg")
	require.NoError(t, err)

	parts := strings.Split(link.Token, ".")
	parts[0] = "user-2"
	_, _, err = signer.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrLinkInvalid)

	_, _, err = NewDownloadSigner("other", time.Hour).Verify(link.Token)
	require.ErrorIs(t, err, ErrLinkInvalid)

	_, _, err = signer.Verify("garbage")
	require.ErrorIs(t, err, ErrLinkInvalid)
}

func TestIsPrivate(t *testing.T) {
	require.True(t, IsPrivate("documents/cccd/a.jpg"))
	require.True(t, IsPrivate("/documents/health/b.pdf"))
	require.True(t, IsPrivate("../etc/passwd"))
	require.False(t, IsPrivate("avatars/a.png"))
}
