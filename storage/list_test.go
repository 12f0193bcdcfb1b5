package storage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/storage"
)

var listKeys = []string{
	"a.txt",
	"photos/2023/jan.jpg",
	"photos/2023/feb.jpg",
	"photos/2024/mar.jpg",
	"photos/cover.jpg",
	"zeta",
}

func TestStore_ListObjects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		query        bucketry.ListObjectsQuery
		wantObjects  []string
		wantPrefixes []string
		wantTrunc    bool
		wantMarker   string
	}{
		{
			name:        "flat listing",
			query:       bucketry.ListObjectsQuery{MaxKeys: 1000},
			wantObjects: []string{"a.txt", "photos/2023/feb.jpg", "photos/2023/jan.jpg", "photos/2024/mar.jpg", "photos/cover.jpg", "zeta"},
		},
		{
			name:         "delimiter at root",
			query:        bucketry.ListObjectsQuery{Delimiter: "/", MaxKeys: 1000},
			wantObjects:  []string{"a.txt", "zeta"},
			wantPrefixes: []string{"photos/"},
		},
		{
			name:         "delimiter under prefix",
			query:        bucketry.ListObjectsQuery{Prefix: "photos/", Delimiter: "/", MaxKeys: 1000},
			wantObjects:  []string{"photos/cover.jpg"},
			wantPrefixes: []string{"photos/2023/", "photos/2024/"},
		},
		{
			name:        "prefix without further delimiter",
			query:       bucketry.ListObjectsQuery{Prefix: "photos/2023/", Delimiter: "/", MaxKeys: 1000},
			wantObjects: []string{"photos/2023/feb.jpg", "photos/2023/jan.jpg"},
		},
		{
			name:         "truncated on common prefix",
			query:        bucketry.ListObjectsQuery{Delimiter: "/", MaxKeys: 2},
			wantObjects:  []string{"a.txt"},
			wantPrefixes: []string{"photos/"},
			wantTrunc:    true,
			wantMarker:   "photos/",
		},
		{
			name:        "resume after common prefix",
			query:       bucketry.ListObjectsQuery{Delimiter: "/", After: "photos/", MaxKeys: 2},
			wantObjects: []string{"zeta"},
		},
		{
			name:        "truncated flat listing",
			query:       bucketry.ListObjectsQuery{MaxKeys: 2},
			wantObjects: []string{"a.txt", "photos/2023/feb.jpg"},
			wantTrunc:   true,
			wantMarker:  "photos/2023/feb.jpg",
		},
		{
			name:        "resume after key",
			query:       bucketry.ListObjectsQuery{After: "photos/2023/feb.jpg", MaxKeys: 1000},
			wantObjects: []string{"photos/2023/jan.jpg", "photos/2024/mar.jpg", "photos/cover.jpg", "zeta"},
		},
		{
			name:         "resume after key inside a group",
			query:        bucketry.ListObjectsQuery{Delimiter: "/", After: "photos/2023/feb.jpg", MaxKeys: 1000},
			wantObjects:  []string{"zeta"},
			wantPrefixes: []string{"photos/"},
		},
		{
			name:         "exact fit is not truncated",
			query:        bucketry.ListObjectsQuery{Delimiter: "/", MaxKeys: 3},
			wantObjects:  []string{"a.txt", "zeta"},
			wantPrefixes: []string{"photos/"},
		},
		{
			name:  "zero max keys",
			query: bucketry.ListObjectsQuery{MaxKeys: 0},
		},
		{
			name:  "no match",
			query: bucketry.ListObjectsQuery{Prefix: "nothing/", Delimiter: "/", MaxKeys: 10},
		},
		{
			name:         "multi character delimiter",
			query:        bucketry.ListObjectsQuery{Delimiter: "/20", MaxKeys: 1000},
			wantObjects:  []string{"a.txt", "photos/cover.jpg", "zeta"},
			wantPrefixes: []string{"photos/20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newKeyRepo("photos-bucket", listKeys...)
			s, err := storage.New(repo, new(SpyFileStorage), storage.Config{})
			require.NoError(t, err)

			q := tt.query
			q.Bucket = "photos-bucket"

			res, err := s.ListObjects(context.Background(), q)
			require.NoError(t, err)

			assert.Equal(t, tt.wantObjects, nilIfEmpty(keysOf(res.Objects)))
			assert.Equal(t, tt.wantPrefixes, res.CommonPrefixes)
			assert.Equal(t, tt.wantTrunc, res.IsTruncated)
			assert.Equal(t, tt.wantMarker, res.NextMarker)
		})
	}
}

func TestStore_ListObjects_Pages(t *testing.T) {
	t.Parallel()

	keys := make([]string, 0, 1200)
	for i := range 1200 {
		keys = append(keys, fmt.Sprintf("k%05d", i))
	}
	repo := newKeyRepo("many", keys...)

	s, err := storage.New(repo, new(SpyFileStorage), storage.Config{})
	require.NoError(t, err)

	res, err := s.ListObjects(context.Background(), bucketry.ListObjectsQuery{Bucket: "many", MaxKeys: 1000})
	require.NoError(t, err)

	assert.Len(t, res.Objects, 1000)
	assert.True(t, res.IsTruncated)
	assert.Equal(t, "k00999", res.NextMarker)
	assert.Equal(t, 2, repo.calls)

	res, err = s.ListObjects(context.Background(), bucketry.ListObjectsQuery{Bucket: "many", After: res.NextMarker, MaxKeys: 1000})
	require.NoError(t, err)

	assert.Len(t, res.Objects, 200)
	assert.False(t, res.IsTruncated)
	assert.Empty(t, res.NextMarker)
}

func TestStore_ListObjects_NoSuchBucket(t *testing.T) {
	t.Parallel()

	s, err := storage.New(newKeyRepo("photos"), new(SpyFileStorage), storage.Config{})
	require.NoError(t, err)

	_, err = s.ListObjects(context.Background(), bucketry.ListObjectsQuery{Bucket: "missing", MaxKeys: 10})
	require.ErrorIs(t, err, bucketry.ErrNoSuchBucket)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
