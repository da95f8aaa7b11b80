package content

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ocipack/ocipack/types"
)

func TestAddress(t *testing.T) {
	t.Parallel()
	tt := []struct {
		name         string
		data         []byte
		expectDigest string
	}{
		{
			name:         "empty bytes",
			data:         []byte{},
			expectDigest: types.DigestEmptyBytes.String(),
		},
		{
			name:         "nil",
			data:         nil,
			expectDigest: types.DigestEmptyBytes.String(),
		},
		{
			name:         "empty json",
			data:         []byte(types.EmptyJSON),
			expectDigest: types.DigestEmptyJSON.String(),
		},
		{
			name:         "hello",
			data:         []byte("hello world"),
			expectDigest: "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d := Address(tc.data)
			if d.Digest.String() != tc.expectDigest {
				t.Errorf("unexpected digest, expected %s, received %s", tc.expectDigest, d.Digest)
			}
			if d.Size != int64(len(tc.data)) {
				t.Errorf("unexpected size, expected %d, received %d", len(tc.data), d.Size)
			}
			if d.MediaType != "" {
				t.Errorf("media type should be unset, received %s", d.MediaType)
			}
			// repeated calls are identical
			d2 := Address(tc.data)
			if !d.Equal(d2) {
				t.Errorf("address is not deterministic: %v != %v", d, d2)
			}
			// streaming matches in memory
			dr, err := AddressReader(bytes.NewReader(tc.data))
			if err != nil {
				t.Fatalf("failed to address reader: %v", err)
			}
			if !d.Equal(dr) {
				t.Errorf("reader mismatch: %v != %v", d, dr)
			}
		})
	}
}

func TestAddressDistinct(t *testing.T) {
	t.Parallel()
	seen := map[string]string{}
	inputs := []string{"", "a", "b", "ab", "ba", "{}", "{ }", "A.abi", "B.abi"}
	for _, in := range inputs {
		d := Address([]byte(in))
		if prev, ok := seen[d.Digest.String()]; ok {
			t.Errorf("digest collision between %q and %q", prev, in)
		}
		seen[d.Digest.String()] = in
		if d.Digest.Algorithm().String() != "sha256" {
			t.Errorf("unexpected algorithm %s", d.Digest.Algorithm())
		}
		if enc := d.Digest.Encoded(); enc != strings.ToLower(enc) || len(enc) != 64 {
			t.Errorf("digest encoding must be 64 lowercase hex characters: %s", enc)
		}
	}
}

func TestAddressMediaType(t *testing.T) {
	t.Parallel()
	d := AddressMediaType([]byte("payload"), types.MediaTypeItem)
	if d.MediaType != types.MediaTypeItem || d.Size != 7 {
		t.Errorf("unexpected descriptor: %v", d)
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestAddressReaderError(t *testing.T) {
	t.Parallel()
	_, err := AddressReader(io.MultiReader(strings.NewReader("partial"), errReader{}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("unexpected error, expected %v, received %v", io.ErrUnexpectedEOF, err)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	data := []byte("verified content")
	good := AddressMediaType(data, types.MediaTypeItem)
	tt := []struct {
		name      string
		desc      types.Descriptor
		data      []byte
		expectErr error
	}{
		{
			name: "good",
			desc: good,
			data: data,
		},
		{
			name:      "size",
			desc:      types.Descriptor{MediaType: good.MediaType, Digest: good.Digest, Size: good.Size + 1},
			data:      data,
			expectErr: types.ErrSizeInvalid,
		},
		{
			name:      "digest",
			desc:      good,
			data:      []byte("verified CONTENT"),
			expectErr: types.ErrDigestInvalid,
		},
		{
			name:      "malformed digest",
			desc:      types.Descriptor{Digest: "sha256:1234", Size: good.Size},
			data:      data,
			expectErr: types.ErrDigestInvalid,
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			for _, fn := range []func() error{
				func() error { return Verify(tc.desc, tc.data) },
				func() error { return VerifyReader(tc.desc, bytes.NewReader(tc.data)) },
			} {
				err := fn()
				if tc.expectErr == nil {
					if err != nil {
						t.Errorf("unexpected error: %v", err)
					}
					continue
				}
				if !errors.Is(err, tc.expectErr) {
					t.Errorf("unexpected error, expected %v, received %v", tc.expectErr, err)
				}
			}
		})
	}
}
