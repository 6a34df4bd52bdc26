package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPathRejectsTraversal(t *testing.T) {
	_, err := CleanPath("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = CleanPath("avatars/../../x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = CleanPath("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	got, err := CleanPath("/documents//cccd/a.png")
	require.NoError(t, err)
	assert.Equal(t, "documents/cccd/a.png", got)
}

func TestPublicURLRoundTrip(t *testing.T) {
	url := PublicURL("/api/v1/files/", "avatars/a.png")
	assert.Equal(t, "/api/v1/files/avatars/a.png", url)
	assert.Equal(t, "avatars/a.png", PathFromURL("/api/v1/files/", url))
	assert.Equal(t, "avatars/a.png", PathFromURL("/api/v1/files/", "https://cdn.example/api/v1/files/avatars/a.png"))
	assert.Equal(t, "avatars/a.png", PathFromURL("/api/v1/files/", "avatars/a.png"))
	assert.Equal(t, "", PublicURL("/api/v1/files/", ""))
}

func TestLocalStorageLifecycle(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	rel, err := store.Store(ctx, "selfie.PNG", []byte("img"), "avatars")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "avatars/"))
	assert.True(t, strings.HasSuffix(rel, ".png"))

	rc, err := store.Open(ctx, rel)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "img", string(body))

	assert.True(t, store.Delete(ctx, rel))
	_, err = os.Stat(filepath.Join(dir, rel))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, store.Delete(ctx, rel), "deleting a missing file is not a failure")
	assert.False(t, store.Delete(ctx, "../outside.txt"))

	_, err = store.Open(ctx, rel)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

type fakeS3 struct {
	objects   map[string][]byte
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageLifecycle(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3Storage(fake, "bucket", nil)
	ctx := context.Background()

	key, err := store.Store(ctx, "front.jpg", []byte("cccd"), "documents/cccd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "documents/cccd/"))
	assert.Equal(t, []byte("cccd"), fake.objects[key])

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	_ = rc.Close()

	assert.True(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	fake.deleteErr = errors.New("503 slow down")
	assert.False(t, store.Delete(ctx, key))
}
