package share

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "rollcall/internal/config"
)

func TestLocalDir_Upload(t *testing.T) {
	dir := t.TempDir()
	link, err := NewLocalDir(dir).Upload(context.Background(), "Lecture_2024-03-01_attendance.csv", []byte("a,b"), "text/csv")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.True(t, strings.HasSuffix(u.Path, "/Lecture_2024-03-01_attendance.csv"))

	data, err := os.ReadFile(u.Path)
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))
}

func TestStorageKey(t *testing.T) {
	key := storageKey("/exports/", "../../etc/Yearly_2024_attendance.csv", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "exports/2024/03/01/"), key)
	assert.True(t, strings.HasSuffix(key, "/Yearly_2024_attendance.csv"), key)
	assert.NotContains(t, key, "..")
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    string
	putErr  error
	presign *s3.GetObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.presign = in
	return &v4.PresignedHTTPRequest{URL: "https://minio.local/" + *in.Bucket + "/" + *in.Key + "?X-Amz-Signature=x", Method: http.MethodGet}, nil
}

func TestS3_Upload(t *testing.T) {
	fake := &fakeS3{}
	up := &S3{client: fake, presign: fake, bucket: "rollcall-exports", ttl: time.Hour, now: time.Now}

	link, err := up.Upload(context.Background(), "Monthly_2024_03_attendance.csv", []byte("csv"), "text/csv")
	require.NoError(t, err)

	assert.Equal(t, "rollcall-exports", *fake.put.Bucket)
	assert.Equal(t, "text/csv", *fake.put.ContentType)
	assert.Equal(t, "csv", fake.body)
	assert.Equal(t, *fake.put.Key, *fake.presign.Key)
	assert.Contains(t, link, "X-Amz-Signature")
}

func TestS3_UploadError(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("access denied")}
	up := &S3{client: fake, presign: fake, bucket: "b", ttl: time.Hour, now: time.Now}

	_, err := up.Upload(context.Background(), "x.csv", nil, "text/csv")
	assert.ErrorContains(t, err, "access denied")
	assert.Nil(t, fake.presign)
}

func TestNewS3_BuildsClient(t *testing.T) {
	up, err := NewS3(context.Background(), S3Config{
		Endpoint: "http://127.0.0.1:9000", Region: "us-east-1", Bucket: "b", AccessKey: "k", SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, up.ttl)
}

func TestCloudinary_Upload(t *testing.T) {
	fixed := time.Unix(1709280000, 0)
	var gotPath string
	var fields map[string]string
	var fileName, fileBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, h, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		fileName, fileBody = h.Filename, string(b)
		fmt.Fprint(w, `{"public_id":"rollcall/x","secure_url":"https://res.cloudinary.com/demo/raw/upload/x.csv","bytes":3}`)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "rollcall")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return fixed }

	link, err := c.Upload(context.Background(), "Yearly_2024_attendance.csv", []byte("csv"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/raw/upload/x.csv", link)
	assert.Equal(t, "/v1_1/demo/raw/upload", gotPath)
	assert.Equal(t, "Yearly_2024_attendance.csv", fileName)
	assert.Equal(t, "csv", fileBody)

	payload := "folder=rollcall&public_id=" + fields["public_id"] + "&timestamp=1709280000secret"
	assert.Equal(t, fmt.Sprintf("%x", sha1.Sum([]byte(payload))), fields["signature"])
}

func TestCloudinary_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "bad", "")
	c.BaseURL = srv.URL
	_, err := c.Upload(context.Background(), "x.csv", []byte("csv"), "text/csv")
	assert.ErrorContains(t, err, "upload failed (401)")
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	up, err := FromConfig(ctx, appconfig.App{ShareBackend: "local", ExportDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalDir{}, up)

	up, err = FromConfig(ctx, appconfig.App{ShareBackend: "s3", S3Region: "us-east-1", S3Bucket: "b", S3Endpoint: "http://127.0.0.1:9000"})
	require.NoError(t, err)
	assert.IsType(t, &S3{}, up)

	_, err = FromConfig(ctx, appconfig.App{ShareBackend: "cloudinary"})
	assert.Error(t, err)

	up, err = FromConfig(ctx, appconfig.App{ShareBackend: "cloudinary", CloudinaryCloudName: "c", CloudinaryAPIKey: "k", CloudinaryAPISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &Cloudinary{}, up)

	_, err = FromConfig(ctx, appconfig.App{ShareBackend: "ftp"})
	assert.ErrorContains(t, err, "unknown backend")
}
