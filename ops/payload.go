package ops

import (
	"bytes"
	"crypto/md5" //nolint:gosec // G501: Content-MD5 is defined as MD5
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/sagarc03/bucketry"
)

// verifyingReader hashes the payload as it is read and fails the final read
// if a digest does not match. Consumers that stop on the error never commit
// a mismatched payload.
type verifyingReader struct {
	r io.Reader

	sha256     hash.Hash
	wantSHA256 []byte
	md5        hash.Hash
	wantMD5    []byte

	limit int64
	n     int64
	err   error
}

// newVerifyingReader wraps r. An empty wantSHA256 or nil wantMD5 skips that
// check; limit <= 0 disables the size limit.
func newVerifyingReader(r io.Reader, wantSHA256 string, wantMD5 []byte, limit int64) *verifyingReader {
	v := &verifyingReader{r: r, wantMD5: wantMD5, limit: limit}
	if wantSHA256 != "" {
		v.wantSHA256, _ = hex.DecodeString(wantSHA256)
		v.sha256 = sha256.New()
	}
	if wantMD5 != nil {
		v.md5 = md5.New() //nolint:gosec // G401: Content-MD5 is defined as MD5
	}
	return v
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}

	n, err := v.r.Read(p)
	if n > 0 {
		v.n += int64(n)
		if v.limit > 0 && v.n > v.limit {
			v.err = bucketry.NewError(bucketry.ErrCodeEntityTooLarge)
			return 0, v.err
		}
		if v.sha256 != nil {
			v.sha256.Write(p[:n])
		}
		if v.md5 != nil {
			v.md5.Write(p[:n])
		}
	}

	if err == io.EOF {
		if checkErr := v.check(); checkErr != nil {
			v.err = checkErr
			return 0, checkErr
		}
	}
	return n, err
}

func (v *verifyingReader) check() error {
	if v.sha256 != nil && !bytes.Equal(v.sha256.Sum(nil), v.wantSHA256) {
		return bucketry.NewError(bucketry.ErrCodeXAmzContentSHA256Mismatch)
	}
	if v.md5 != nil && !bytes.Equal(v.md5.Sum(nil), v.wantMD5) {
		return bucketry.NewError(bucketry.ErrCodeBadDigest)
	}
	return nil
}
