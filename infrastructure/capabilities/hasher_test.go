package capabilities

import (
	"strings"
	"testing"

	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptHasher_Hash(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		salt      string
		algorithm string
		expected  string
	}{
		{
			name:      "nxos sha256 account",
			password:  "foobar123&",
			salt:      "mkXh6O4T",
			algorithm: "sha256",
			expected:  "$5$mkXh6O4T$YUVtA89HbXCnue63kgghPlaqPHyaXhdtxPBbPEHhbRC",
		},
		{
			name:      "sha256",
			password:  "test123TMM^&",
			salt:      "ZcZqm15X",
			algorithm: "sha256",
			expected:  "$5$ZcZqm15X$exHN2m6yrPKpYhGArK3Vml3ZjNbJaJYdzWyf0fp1Up2",
		},
		{
			name:      "sha512",
			password:  "Hello world!",
			salt:      "saltstring",
			algorithm: "sha512",
			expected: "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjn" +
				"QJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1",
		},
		{
			name:      "md5",
			password:  "Lorem ipsum dolor sit amet",
			salt:      "12345678",
			algorithm: "md5",
			expected:  "$1$12345678$Suzx8CrBlkNJwVHHHv5tZ.",
		},
	}

	h := NewCryptHasher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := h.Hash(tt.password, tt.salt, tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hashed)
		})
	}
}

func TestCryptHasher_GeneratedSalt(t *testing.T) {
	h := NewCryptHasher()
	hashed, err := h.Hash("secret", "", "sha256")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "$5$"))
	assert.NoError(t, sha256_crypt.New().Verify(hashed, []byte("secret")))
}

func TestCryptHasher_UnknownAlgorithm(t *testing.T) {
	_, err := NewCryptHasher().Hash("secret", "salt", "blowfish")
	assert.Error(t, err)
}
