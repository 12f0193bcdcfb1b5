// Package repotest holds behaviour tests shared by every MetaDataRepo
// implementation.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
)

// Setup returns an empty repo private to the calling test.
type Setup func(t *testing.T) bucketry.MetaDataRepo

// Run exercises repo behaviour against fresh repos from setup.
func Run(t *testing.T, setup Setup) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, repo bucketry.MetaDataRepo)
	}{
		{"buckets", testBuckets},
		{"delete bucket", testDeleteBucket},
		{"upsert and get", testUpsertGet},
		{"upsert revives deleted", testUpsertRevives},
		{"delete", testDelete},
		{"list", testList},
		{"list byte order", testListByteOrder},
		{"list prefix is literal", testListPrefixLiteral},
		{"pending cleanup", testPendingCleanup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.fn(t, setup(t))
		})
	}
}

func mustBucket(t *testing.T, repo bucketry.MetaDataRepo, name string) {
	t.Helper()
	_, err := repo.CreateBucket(context.Background(), name)
	require.NoError(t, err, "create bucket %s", name)
}

func mustPut(t *testing.T, repo bucketry.MetaDataRepo, bucket string, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, _, err := repo.Upsert(context.Background(), bucketry.ObjectEntry{
			Bucket: bucket, Key: k, Size: int64(len(k)), ETag: "etag-" + k, ContentType: "text/plain",
		})
		require.NoError(t, err, "upsert %s/%s", bucket, k)
	}
}

func listKeys(t *testing.T, repo bucketry.MetaDataRepo, q bucketry.ListQuery) ([]string, bool) {
	t.Helper()
	res, err := repo.List(context.Background(), q)
	require.NoError(t, err)

	keys := make([]string, 0, len(res.Items))
	for _, m := range res.Items {
		keys = append(keys, m.Key)
	}
	return keys, res.More
}

func testBuckets(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()

	b, err := repo.CreateBucket(ctx, "zebra")
	require.NoError(t, err)
	assert.Equal(t, "zebra", b.Name)
	assert.False(t, b.CreatedAt.IsZero())

	mustBucket(t, repo, "alpha")

	_, err = repo.CreateBucket(ctx, "zebra")
	require.ErrorIs(t, err, bucketry.ErrBucketExists)

	got, err := repo.GetBucket(ctx, "zebra")
	require.NoError(t, err)
	assert.Equal(t, "zebra", got.Name)
	assert.WithinDuration(t, b.CreatedAt, got.CreatedAt, 0)

	_, err = repo.GetBucket(ctx, "missing")
	require.ErrorIs(t, err, bucketry.ErrNoSuchBucket)

	buckets, err := repo.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "alpha", buckets[0].Name)
	assert.Equal(t, "zebra", buckets[1].Name)
}

func testDeleteBucket(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()

	require.ErrorIs(t, repo.DeleteBucket(ctx, "missing"), bucketry.ErrNoSuchBucket)

	mustBucket(t, repo, "photos")
	mustPut(t, repo, "photos", "a.jpg")

	require.ErrorIs(t, repo.DeleteBucket(ctx, "photos"), bucketry.ErrBucketNotEmpty)

	require.NoError(t, repo.Delete(ctx, "photos", "a.jpg"))
	require.NoError(t, repo.DeleteBucket(ctx, "photos"))

	_, err := repo.GetBucket(ctx, "photos")
	require.ErrorIs(t, err, bucketry.ErrNoSuchBucket)
}

func testUpsertGet(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()
	mustBucket(t, repo, "photos")

	entry := bucketry.ObjectEntry{
		Bucket:       "photos",
		Key:          "2024/cat.jpg",
		Size:         42,
		ETag:         "d41d8cd98f00b204e9800998ecf8427e",
		ContentType:  "image/jpeg",
		UserMetadata: map[string]string{"owner": "alice", "camera": "x100"},
	}

	created, inserted, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "photos", created.Bucket)
	assert.Equal(t, "2024/cat.jpg", created.Key)
	assert.Equal(t, int64(42), created.FileSizeBytes)
	assert.Equal(t, entry.UserMetadata, created.UserMetadata)

	got, err := repo.Get(ctx, "photos", "2024/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, entry.ETag, got.Etag)
	assert.Equal(t, entry.UserMetadata, got.UserMetadata)

	entry.Size = 7
	entry.ETag = "new"
	entry.UserMetadata = nil

	updated, inserted, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(7), updated.FileSizeBytes)
	assert.Equal(t, "new", updated.Etag)
	assert.Empty(t, updated.UserMetadata)
	assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, 0)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = repo.Get(ctx, "photos", "missing")
	require.ErrorIs(t, err, bucketry.ErrNoSuchKey)

	_, err = repo.Get(ctx, "other", "2024/cat.jpg")
	require.ErrorIs(t, err, bucketry.ErrNoSuchKey)
}

func testUpsertRevives(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()
	mustBucket(t, repo, "photos")
	mustPut(t, repo, "photos", "a.jpg")

	first, err := repo.Get(ctx, "photos", "a.jpg")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "photos", "a.jpg"))
	_, err = repo.Get(ctx, "photos", "a.jpg")
	require.ErrorIs(t, err, bucketry.ErrNoSuchKey)

	revived, inserted, err := repo.Upsert(ctx, bucketry.ObjectEntry{Bucket: "photos", Key: "a.jpg", ETag: "again", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, revived.ID)

	pending, err := repo.ListPendingCleanup(ctx, bucketry.ListQuery{Bucket: "photos"})
	require.NoError(t, err)
	assert.Empty(t, pending.Items)
}

func testDelete(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()
	mustBucket(t, repo, "photos")
	mustPut(t, repo, "photos", "a.jpg")

	require.NoError(t, repo.Delete(ctx, "photos", "a.jpg"))
	require.ErrorIs(t, repo.Delete(ctx, "photos", "a.jpg"), bucketry.ErrNoSuchKey)
	require.ErrorIs(t, repo.Delete(ctx, "photos", "never"), bucketry.ErrNoSuchKey)

	keys, _ := listKeys(t, repo, bucketry.ListQuery{Bucket: "photos"})
	assert.Empty(t, keys)
}

func testList(t *testing.T, repo bucketry.MetaDataRepo) {
	mustBucket(t, repo, "photos")
	mustBucket(t, repo, "docs")
	mustPut(t, repo, "photos", "b.jpg", "a.jpg", "dir/c.jpg", "dir/d.jpg", "e.jpg")
	mustPut(t, repo, "docs", "a.txt")

	tests := []struct {
		name     string
		query    bucketry.ListQuery
		wantKeys []string
		wantMore bool
	}{
		{"all", bucketry.ListQuery{Bucket: "photos"}, []string{"a.jpg", "b.jpg", "dir/c.jpg", "dir/d.jpg", "e.jpg"}, false},
		{"limit", bucketry.ListQuery{Bucket: "photos", Limit: 2}, []string{"a.jpg", "b.jpg"}, true},
		{"exact limit", bucketry.ListQuery{Bucket: "photos", Limit: 5}, []string{"a.jpg", "b.jpg", "dir/c.jpg", "dir/d.jpg", "e.jpg"}, false},
		{"after", bucketry.ListQuery{Bucket: "photos", After: "b.jpg", Limit: 2}, []string{"dir/c.jpg", "dir/d.jpg"}, true},
		{"after is exclusive", bucketry.ListQuery{Bucket: "photos", After: "dir/d.jpg"}, []string{"e.jpg"}, false},
		{"prefix", bucketry.ListQuery{Bucket: "photos", Prefix: "dir/"}, []string{"dir/c.jpg", "dir/d.jpg"}, false},
		{"prefix and after", bucketry.ListQuery{Bucket: "photos", Prefix: "dir/", After: "dir/c.jpg"}, []string{"dir/d.jpg"}, false},
		{"other bucket", bucketry.ListQuery{Bucket: "docs"}, []string{"a.txt"}, false},
		{"empty bucket", bucketry.ListQuery{Bucket: "missing"}, []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, more := listKeys(t, repo, tt.query)
			assert.Equal(t, tt.wantKeys, keys)
			assert.Equal(t, tt.wantMore, more)
		})
	}
}

func testListByteOrder(t *testing.T, repo bucketry.MetaDataRepo) {
	mustBucket(t, repo, "order")
	mustPut(t, repo, "order", "b", "B", "a", "é", "_", "a/b", "a-b", "Z")

	keys, _ := listKeys(t, repo, bucketry.ListQuery{Bucket: "order"})
	assert.Equal(t, []string{"B", "Z", "_", "a", "a-b", "a/b", "b", "é"}, keys)
}

func testListPrefixLiteral(t *testing.T, repo bucketry.MetaDataRepo) {
	mustBucket(t, repo, "literal")
	mustPut(t, repo, "literal", "100%/a", "100x/a", "a_b", "axb", "Dir/a", "dir/a")

	tests := []struct {
		prefix string
		want   []string
	}{
		{"100%", []string{"100%/a"}},
		{"a_", []string{"a_b"}},
		{"dir/", []string{"dir/a"}},
		{"Dir/", []string{"Dir/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			keys, _ := listKeys(t, repo, bucketry.ListQuery{Bucket: "literal", Prefix: tt.prefix})
			assert.Equal(t, tt.want, keys)
		})
	}
}

func testPendingCleanup(t *testing.T, repo bucketry.MetaDataRepo) {
	ctx := context.Background()
	mustBucket(t, repo, "photos")
	mustBucket(t, repo, "docs")

	for i := range 3 {
		mustPut(t, repo, "photos", fmt.Sprintf("p%d", i))
	}
	mustPut(t, repo, "docs", "d0")

	require.NoError(t, repo.Delete(ctx, "photos", "p0"))
	require.NoError(t, repo.Delete(ctx, "photos", "p2"))
	require.NoError(t, repo.Delete(ctx, "docs", "d0"))

	all, err := repo.ListPendingCleanup(ctx, bucketry.ListQuery{})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	assert.Equal(t, "docs", all.Items[0].Bucket)

	page, err := repo.ListPendingCleanup(ctx, bucketry.ListQuery{Bucket: "photos", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.More)
	assert.Equal(t, "p0", page.Items[0].Key)

	require.NoError(t, repo.MarkCleanedUp(ctx, page.Items[0].ID))
	require.ErrorIs(t, repo.MarkCleanedUp(ctx, page.Items[0].ID), bucketry.ErrNoSuchKey)

	live, err := repo.Get(ctx, "photos", "p1")
	require.NoError(t, err)
	require.ErrorIs(t, repo.MarkCleanedUp(ctx, live.ID), bucketry.ErrNoSuchKey)

	rest, err := repo.ListPendingCleanup(ctx, bucketry.ListQuery{Bucket: "photos"})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "p2", rest.Items[0].Key)
	assert.False(t, rest.More)
}
