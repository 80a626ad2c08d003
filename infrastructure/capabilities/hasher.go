package capabilities

import (
	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/pkg/errors"

	"github.com/carlosrabelo/nxproxy/domain/ports"
)

type algorithm struct {
	prefix string
	new    func() crypt.Crypter
}

var algorithms = map[string]algorithm{
	"md5":    {prefix: md5_crypt.MagicPrefix, new: md5_crypt.New},
	"sha256": {prefix: sha256_crypt.MagicPrefix, new: sha256_crypt.New},
	"sha512": {prefix: sha512_crypt.MagicPrefix, new: sha512_crypt.New},
}

// CryptHasher produces crypt(3) hashes in the formats NX-OS accepts for
// "password 5"
type CryptHasher struct{}

func NewCryptHasher() *CryptHasher {
	return &CryptHasher{}
}

// Hash hashes password with salt; an empty salt is generated randomly
func (h *CryptHasher) Hash(password, salt, name string) (string, error) {
	alg, ok := algorithms[name]
	if !ok {
		return "", errors.Errorf("hash algorithm %s is not supported", name)
	}
	var saltBytes []byte
	if salt != "" {
		saltBytes = []byte(alg.prefix + salt)
	}
	hashed, err := alg.new().Generate([]byte(password), saltBytes)
	if err != nil {
		return "", errors.Wrapf(err, "failed to hash password with %s", name)
	}
	return hashed, nil
}

var _ ports.PasswordHasher = (*CryptHasher)(nil)
