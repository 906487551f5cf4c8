package harvest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
)

func newCodeStore(t *testing.T) *persistence.FileStore {
	t.Helper()
	fs, err := persistence.NewFileStore(filepath.Join(t.TempDir(), "harvests.json"))
	require.NoError(t, err)
	return fs
}

// echoOCR "reads" whatever text the photo bytes contain.
var echoOCR = RecognizerFunc(func(_ context.Context, p Photo) (string, error) {
	return string(p.Data), nil
})

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestVerify(t *testing.T) {
	assert.True(t, Verify("HARVEST 482913 kelp", "482913"))
	assert.True(t, Verify("482913", "482913"))
	assert.False(t, Verify("48291 3", "482913"))
	assert.False(t, Verify("", "482913"))
	assert.False(t, Verify("anything", ""))
}

func TestVerifyPhotoUsesStoredCode(t *testing.T) {
	ctx := context.Background()
	v := NewPhotoVerifier(newCodeStore(t), echoOCR, time.Minute)

	code, err := v.Issue(ctx, "h1")
	require.NoError(t, err)

	ok, err := v.VerifyPhoto(ctx, "h1", Photo{Data: []byte("note: 000000")})
	require.NoError(t, err)
	assert.False(t, ok, "wrong code must not verify")

	// a miss keeps the code for another capture
	ok, err = v.VerifyPhoto(ctx, "h1", Photo{Data: []byte("note: " + code)})
	require.NoError(t, err)
	assert.True(t, ok)

	// consumed on success
	_, err = v.VerifyPhoto(ctx, "h1", Photo{Data: []byte(code)})
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestVerifyPhotoReissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	v := NewPhotoVerifier(newCodeStore(t), echoOCR, time.Minute)

	first, err := v.Issue(ctx, "h1")
	require.NoError(t, err)
	second, err := v.Issue(ctx, "h1")
	require.NoError(t, err)

	ok, err := v.VerifyPhoto(ctx, "h1", Photo{Data: []byte(second)})
	require.NoError(t, err)
	assert.True(t, ok)
	if first != second {
		_, err = v.VerifyPhoto(ctx, "h1", Photo{Data: []byte(first)})
		assert.ErrorIs(t, err, ErrCodeNotFound)
	}
}

func TestVerifyPhotoExpiredCode(t *testing.T) {
	ctx := context.Background()
	v := NewPhotoVerifier(newCodeStore(t), echoOCR, time.Minute)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return base }

	code, err := v.Issue(ctx, "h1")
	require.NoError(t, err)

	v.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = v.VerifyPhoto(ctx, "h1", Photo{Data: []byte(code)})
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestVerifyPhotoErrors(t *testing.T) {
	ctx := context.Background()
	failing := RecognizerFunc(func(context.Context, Photo) (string, error) {
		return "", errors.New("engine crashed")
	})
	v := NewPhotoVerifier(newCodeStore(t), failing, time.Minute)

	_, err := v.VerifyPhoto(ctx, "unknown", Photo{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = v.Issue(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = v.Issue(ctx, "h1")
	require.NoError(t, err)

	_, err = v.VerifyPhoto(ctx, "h1", Photo{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = v.VerifyPhoto(ctx, "h1", Photo{Data: []byte("img")})
	assert.ErrorIs(t, err, ErrOCRFailure)
}

func TestHTTPRecognizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "photo.png", hdr.Filename)
		_, _ = w.Write([]byte(`{"text": "seen: ` + string(b) + `"}`))
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(NewUpstream("ocr", srv.URL, time.Second, BreakerSettings{Failures: 3, OpenFor: time.Minute}))
	text, err := rec.Recognize(context.Background(), Photo{Filename: "photo.png", ContentType: "image/png", Data: []byte("123456")})
	require.NoError(t, err)
	assert.Equal(t, "seen: 123456", text)
}
