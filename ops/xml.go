package ops

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/sagarc03/bucketry/s3http"
)

const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// timestampFormat is the ISO 8601 layout S3 uses in XML documents.
const timestampFormat = "2006-01-02T15:04:05.000Z"

type ownerResult struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

type bucketResult struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type listAllMyBucketsResult struct {
	XMLName xml.Name       `xml:"ListAllMyBucketsResult"`
	Xmlns   string         `xml:"xmlns,attr"`
	Owner   ownerResult    `xml:"Owner"`
	Buckets []bucketResult `xml:"Buckets>Bucket"`
}

type contentResult struct {
	Key          string       `xml:"Key"`
	LastModified string       `xml:"LastModified"`
	ETag         string       `xml:"ETag"`
	Size         int64        `xml:"Size"`
	StorageClass string       `xml:"StorageClass"`
	Owner        *ownerResult `xml:"Owner,omitempty"`
}

type commonPrefixResult struct {
	Prefix string `xml:"Prefix"`
}

type listBucketResult struct {
	XMLName        xml.Name             `xml:"ListBucketResult"`
	Xmlns          string               `xml:"xmlns,attr"`
	Name           string               `xml:"Name"`
	Prefix         string               `xml:"Prefix"`
	Marker         string               `xml:"Marker"`
	NextMarker     string               `xml:"NextMarker,omitempty"`
	MaxKeys        int                  `xml:"MaxKeys"`
	Delimiter      string               `xml:"Delimiter,omitempty"`
	EncodingType   string               `xml:"EncodingType,omitempty"`
	IsTruncated    bool                 `xml:"IsTruncated"`
	Contents       []contentResult      `xml:"Contents"`
	CommonPrefixes []commonPrefixResult `xml:"CommonPrefixes"`
}

type listBucketV2Result struct {
	XMLName               xml.Name             `xml:"ListBucketResult"`
	Xmlns                 string               `xml:"xmlns,attr"`
	Name                  string               `xml:"Name"`
	Prefix                string               `xml:"Prefix"`
	KeyCount              int                  `xml:"KeyCount"`
	MaxKeys               int                  `xml:"MaxKeys"`
	Delimiter             string               `xml:"Delimiter,omitempty"`
	EncodingType          string               `xml:"EncodingType,omitempty"`
	IsTruncated           bool                 `xml:"IsTruncated"`
	ContinuationToken     string               `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string               `xml:"NextContinuationToken,omitempty"`
	StartAfter            string               `xml:"StartAfter,omitempty"`
	Contents              []contentResult      `xml:"Contents"`
	CommonPrefixes        []commonPrefixResult `xml:"CommonPrefixes"`
}

type locationConstraint struct {
	XMLName xml.Name `xml:"LocationConstraint"`
	Xmlns   string   `xml:"xmlns,attr"`
	Region  string   `xml:",chardata"`
}

type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func xmlResponse(v any) (*s3http.Response, error) {
	doc, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	return s3http.XMLResponse(200, append([]byte(xml.Header), doc...)), nil
}
