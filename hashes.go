package fsxpath

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// DefaultChunkSize is the read size used by the hash helpers.
const DefaultChunkSize = 1 << 13

// HashAlgorithm names a supported digest.
type HashAlgorithm int

const (
	MD5 HashAlgorithm = iota
	SHA256
	SHA512
	BLAKE2b256
)

func (a HashAlgorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	case BLAKE2b256:
		return "blake2b-256"
	default:
		return fmt.Sprintf("HashAlgorithm(%d)", int(a))
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a HashAlgorithm) New() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidHashOption, int(a))
	}
}

// HashReader digests r and returns the hex encoded sum. When nbytes is
// positive only the first nbytes are read; zero reads everything. Reads
// happen chunkSize bytes at a time.
func HashReader(r io.Reader, algo HashAlgorithm, nbytes int64, chunkSize int) (string, error) {
	if nbytes < 0 {
		return "", fmt.Errorf("%w: nbytes must be >= 0, got %d", ErrInvalidHashOption, nbytes)
	}
	if chunkSize < 1 {
		return "", fmt.Errorf("%w: chunk size must be >= 1, got %d", ErrInvalidHashOption, chunkSize)
	}

	h, err := algo.New()
	if err != nil {
		return "", err
	}

	if nbytes > 0 {
		r = io.LimitReader(r, nbytes)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		h.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile opens a file through open, digests it with HashReader and
// closes it.
func HashFile(open func() (io.ReadCloser, error), algo HashAlgorithm, nbytes int64, chunkSize int) (sum string, err error) {
	if nbytes < 0 || chunkSize < 1 {
		return HashReader(nil, algo, nbytes, chunkSize)
	}

	f, err := open()
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return HashReader(f, algo, nbytes, chunkSize)
}
