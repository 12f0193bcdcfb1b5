package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/access"
)

func TestPolicy_Check(t *testing.T) {
	t.Parallel()

	creds := &bucketry.Credentials{AccessKey: "AKIA"}

	tests := []struct {
		name    string
		policy  access.Policy
		op      bucketry.Operation
		creds   *bucketry.Credentials
		allowed bool
	}{
		{"authenticated private read", access.Policy{Read: access.Private, Write: access.Private}, bucketry.OpGetObject, creds, true},
		{"authenticated private write", access.Policy{Read: access.Private, Write: access.Private}, bucketry.OpPutObject, creds, true},
		{"anonymous public read", access.Policy{Read: access.Public, Write: access.Private}, bucketry.OpListObjectsV2, nil, true},
		{"anonymous private write", access.Policy{Read: access.Public, Write: access.Private}, bucketry.OpDeleteObject, nil, false},
		{"anonymous private read", access.Policy{Read: access.Private, Write: access.Public}, bucketry.OpHeadObject, nil, false},
		{"anonymous public write", access.Policy{Read: access.Private, Write: access.Public}, bucketry.OpCreateBucket, nil, true},
		{"zero policy denies", access.Policy{}, bucketry.OpListBuckets, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.policy.Check(context.Background(), &bucketry.AccessRequest{
				Operation:   tt.op,
				Bucket:      "photos",
				Key:         "cat.jpg",
				Credentials: tt.creds,
			})

			if tt.allowed {
				assert.NoError(t, err)
				return
			}

			var s3err *bucketry.Error
			require.True(t, errors.As(err, &s3err))
			assert.Equal(t, bucketry.ErrCodeAccessDenied, s3err.Code)
			assert.Equal(t, "/photos/cat.jpg", s3err.Resource)
		})
	}
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	p, err := access.NewPolicy("public", "")
	require.NoError(t, err)
	assert.Equal(t, access.Policy{Read: access.Public, Write: access.Private}, p)
	assert.True(t, p.RequiresAuth())

	p, err = access.NewPolicy("public", "public")
	require.NoError(t, err)
	assert.False(t, p.RequiresAuth())

	_, err = access.NewPolicy("open", "public")
	require.ErrorIs(t, err, bucketry.ErrInvalidInput)
}
