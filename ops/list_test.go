package ops_test

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/ops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type listDoc struct {
	Name                  string `xml:"Name"`
	Prefix                string `xml:"Prefix"`
	Marker                string `xml:"Marker"`
	NextMarker            string `xml:"NextMarker"`
	KeyCount              int    `xml:"KeyCount"`
	MaxKeys               int    `xml:"MaxKeys"`
	Delimiter             string `xml:"Delimiter"`
	IsTruncated           bool   `xml:"IsTruncated"`
	ContinuationToken     string `xml:"ContinuationToken"`
	NextContinuationToken string `xml:"NextContinuationToken"`
	StartAfter            string `xml:"StartAfter"`
	Contents              []struct {
		Key   string `xml:"Key"`
		ETag  string `xml:"ETag"`
		Size  int64  `xml:"Size"`
		Owner *struct {
			ID string `xml:"ID"`
		} `xml:"Owner"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

func decodeList(t *testing.T, body string) listDoc {
	t.Helper()

	var doc listDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	return doc
}

func TestListObjectsV2(t *testing.T) {
	t.Parallel()

	now := time.Now()
	backend := new(MockBackend)
	backend.On("ListObjects", mock.Anything, bucketry.ListObjectsQuery{
		Bucket:    "photos",
		Prefix:    "2026/",
		Delimiter: "/",
		MaxKeys:   2,
	}).Return(bucketry.ListObjectsResult{
		Objects:        []bucketry.MetaData{{Key: "2026/cover.jpg", Etag: "e1", FileSizeBytes: 3, UpdatedAt: now}},
		CommonPrefixes: []string{"2026/january/"},
		IsTruncated:    true,
		NextMarker:     "2026/january/",
	}, nil)
	svc := newService(t, backend, ops.Options{})

	target := "http://s3.local/photos?list-type=2&prefix=2026%2F&delimiter=%2F&max-keys=2"
	res, err := svc.Dispatch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	require.NoError(t, err)

	doc := decodeList(t, readBody(t, res))
	assert.Equal(t, "photos", doc.Name)
	assert.Equal(t, "2026/", doc.Prefix)
	assert.Equal(t, 2, doc.KeyCount)
	assert.Equal(t, 2, doc.MaxKeys)
	assert.True(t, doc.IsTruncated)
	require.Len(t, doc.Contents, 1)
	assert.Equal(t, "2026/cover.jpg", doc.Contents[0].Key)
	assert.Equal(t, `"e1"`, doc.Contents[0].ETag)
	assert.Nil(t, doc.Contents[0].Owner)
	require.Len(t, doc.CommonPrefixes, 1)
	assert.Equal(t, "2026/january/", doc.CommonPrefixes[0].Prefix)

	marker, err := bucketry.DecodeContinuationToken(doc.NextContinuationToken)
	require.NoError(t, err)
	assert.Equal(t, "2026/january/", marker)
}

func TestListObjectsV2_ContinuationToken(t *testing.T) {
	t.Parallel()

	backend := new(MockBackend)
	backend.On("ListObjects", mock.Anything, bucketry.ListObjectsQuery{
		Bucket:  "photos",
		After:   "b.jpg",
		MaxKeys: 1000,
	}).Return(bucketry.ListObjectsResult{}, nil)
	svc := newService(t, backend, ops.Options{})

	token := bucketry.EncodeContinuationToken("b.jpg")
	target := "http://s3.local/photos?list-type=2&start-after=a.jpg&continuation-token=" + url.QueryEscape(token)
	res, err := svc.Dispatch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	require.NoError(t, err)

	doc := decodeList(t, readBody(t, res))
	assert.Equal(t, token, doc.ContinuationToken)
	assert.Equal(t, "a.jpg", doc.StartAfter)
	assert.False(t, doc.IsTruncated)
	assert.Empty(t, doc.NextContinuationToken)
	backend.AssertExpectations(t)
}

func TestListObjectsV2_InvalidParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{name: "negative max-keys", query: "list-type=2&max-keys=-1"},
		{name: "non-numeric max-keys", query: "list-type=2&max-keys=many"},
		{name: "bad continuation token", query: "list-type=2&continuation-token=%25%25%25"},
		{name: "bad encoding type", query: "list-type=2&encoding-type=base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newService(t, new(MockBackend), ops.Options{})
			_, err := svc.Dispatch(context.Background(), newRequest(t, http.MethodGet, "http://s3.local/photos?"+tt.query, nil))
			requireS3Error(t, err, bucketry.ErrCodeInvalidArgument)
		})
	}
}

func TestListObjectsV1(t *testing.T) {
	t.Parallel()

	backend := new(MockBackend)
	backend.On("ListObjects", mock.Anything, bucketry.ListObjectsQuery{
		Bucket:  "photos",
		After:   "a.jpg",
		MaxKeys: 1000,
	}).Return(bucketry.ListObjectsResult{
		Objects:     []bucketry.MetaData{{Key: "b c.jpg", Etag: "e2", FileSizeBytes: 1}},
		IsTruncated: true,
		NextMarker:  "b c.jpg",
	}, nil)
	svc := newService(t, backend, ops.Options{})

	target := "http://s3.local/photos?marker=a.jpg&encoding-type=url&max-keys=5000"
	res, err := svc.Dispatch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	require.NoError(t, err)

	doc := decodeList(t, readBody(t, res))
	assert.Equal(t, "a.jpg", doc.Marker)
	assert.Equal(t, "b+c.jpg", doc.NextMarker)
	assert.Equal(t, 1000, doc.MaxKeys, "max-keys is capped")
	require.Len(t, doc.Contents, 1)
	assert.Equal(t, "b+c.jpg", doc.Contents[0].Key)
	require.NotNil(t, doc.Contents[0].Owner)
	assert.Equal(t, "bucketry", doc.Contents[0].Owner.ID)
}
