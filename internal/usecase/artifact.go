package usecase

import (
	"errors"
	"fmt"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
)

// ErrNoEncryptionKey is returned when an encrypted artifact is requested
// but no passphrase is configured.
var ErrNoEncryptionKey = errors.New("encryption requested but no passphrase configured")

// Packer turns an encoded dataset into stored bytes and back. Compression
// runs before encryption.
type Packer struct {
	compressor domain.Compressor
	encryptor  domain.Encryptor
}

// NewPacker accepts a nil encryptor when no passphrase is configured.
func NewPacker(compressor domain.Compressor, encryptor domain.Encryptor) *Packer {
	return &Packer{compressor: compressor, encryptor: encryptor}
}

func (p *Packer) Pack(payload []byte, compress, encrypt bool) ([]byte, error) {
	out := payload
	if compress {
		c, err := p.compressor.Compress(out)
		if err != nil {
			return nil, fmt.Errorf("compression: %w", err)
		}
		out = c
	}
	if encrypt {
		if p.encryptor == nil {
			return nil, ErrNoEncryptionKey
		}
		e, err := p.encryptor.Encrypt(out)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
		out = e
	}
	return out, nil
}

// Unpack reverses Pack for the flags recorded on file.
func (p *Packer) Unpack(file domain.BackupFile, stored []byte) ([]byte, error) {
	out := stored
	if file.Encrypted {
		if p.encryptor == nil {
			return nil, ErrNoEncryptionKey
		}
		d, err := p.encryptor.Decrypt(out)
		if err != nil {
			return nil, fmt.Errorf("decryption: %w", err)
		}
		out = d
	}
	if file.Compressed {
		d, err := p.compressor.Decompress(out)
		if err != nil {
			return nil, fmt.Errorf("decompression: %w", err)
		}
		out = d
	}
	return out, nil
}

// Extension is the codec extension plus one suffix per packing step.
func Extension(c codec.Codec, compress, encrypt bool) string {
	ext := c.Extension()
	if compress {
		ext += ".gz"
	}
	if encrypt {
		ext += ".enc"
	}
	return ext
}
