package storage_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/storage"
)

type SpyMetaDataRepo struct {
	mock.Mock
}

func (s *SpyMetaDataRepo) CreateBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(bucketry.Bucket), args.Error(1)
}

func (s *SpyMetaDataRepo) GetBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(bucketry.Bucket), args.Error(1)
}

func (s *SpyMetaDataRepo) ListBuckets(ctx context.Context) ([]bucketry.Bucket, error) {
	args := s.Called(ctx)
	return args.Get(0).([]bucketry.Bucket), args.Error(1)
}

func (s *SpyMetaDataRepo) DeleteBucket(ctx context.Context, name string) error {
	args := s.Called(ctx, name)
	return args.Error(0)
}

func (s *SpyMetaDataRepo) Get(ctx context.Context, bucket, key string) (bucketry.MetaData, error) {
	args := s.Called(ctx, bucket, key)
	return args.Get(0).(bucketry.MetaData), args.Error(1)
}

func (s *SpyMetaDataRepo) Upsert(ctx context.Context, entry bucketry.ObjectEntry) (bucketry.MetaData, bool, error) {
	args := s.Called(ctx, entry)
	return args.Get(0).(bucketry.MetaData), args.Bool(1), args.Error(2)
}

func (s *SpyMetaDataRepo) Delete(ctx context.Context, bucket, key string) error {
	args := s.Called(ctx, bucket, key)
	return args.Error(0)
}

func (s *SpyMetaDataRepo) List(ctx context.Context, q bucketry.ListQuery) (bucketry.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(bucketry.ListResult), args.Error(1)
}

func (s *SpyMetaDataRepo) ListPendingCleanup(ctx context.Context, q bucketry.ListQuery) (bucketry.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(bucketry.ListResult), args.Error(1)
}

func (s *SpyMetaDataRepo) MarkCleanedUp(ctx context.Context, id uuid.UUID) error {
	args := s.Called(ctx, id)
	return args.Error(0)
}

type SpyFileStorage struct {
	mock.Mock
}

func (s *SpyFileStorage) Get(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	args := s.Called(ctx, path)
	rc, _ := args.Get(0).(io.ReadSeekCloser)
	return rc, args.Error(1)
}

func (s *SpyFileStorage) Write(ctx context.Context, path string, content io.Reader) (bucketry.SaveResult, error) {
	args := s.Called(ctx, path, content)
	return args.Get(0).(bucketry.SaveResult), args.Error(1)
}

func (s *SpyFileStorage) Delete(ctx context.Context, path string) error {
	args := s.Called(ctx, path)
	return args.Error(0)
}

func (s *SpyFileStorage) List(ctx context.Context) ([]bucketry.ObjectEntry, error) {
	args := s.Called(ctx)
	return args.Get(0).([]bucketry.ObjectEntry), args.Error(1)
}

func newStore(t *testing.T) (*storage.Store, *SpyMetaDataRepo, *SpyFileStorage) {
	t.Helper()

	repo := new(SpyMetaDataRepo)
	files := new(SpyFileStorage)
	s, err := storage.New(repo, files, storage.Config{})
	require.NoError(t, err, "new store")
	return s, repo, files
}

// keyRepo is a MetaDataRepo holding the live keys of a single bucket. Only
// the methods ListObjects needs are implemented.
type keyRepo struct {
	bucketry.MetaDataRepo

	bucket string
	keys   []string
	calls  int
}

func newKeyRepo(bucket string, keys ...string) *keyRepo {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &keyRepo{bucket: bucket, keys: sorted}
}

func (r *keyRepo) GetBucket(_ context.Context, name string) (bucketry.Bucket, error) {
	if name != r.bucket {
		return bucketry.Bucket{}, bucketry.ErrNoSuchBucket
	}
	return bucketry.Bucket{Name: name}, nil
}

func (r *keyRepo) List(_ context.Context, q bucketry.ListQuery) (bucketry.ListResult, error) {
	r.calls++

	var res bucketry.ListResult
	for _, k := range r.keys {
		if !strings.HasPrefix(k, q.Prefix) || k <= q.After {
			continue
		}
		if len(res.Items) == q.Limit {
			res.More = true
			break
		}
		res.Items = append(res.Items, bucketry.MetaData{Bucket: r.bucket, Key: k})
	}
	return res, nil
}

func keysOf(items []bucketry.MetaData) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Key)
	}
	return out
}

type nopReadSeekCloser struct {
	io.ReadSeeker
}

func (nopReadSeekCloser) Close() error { return nil }
