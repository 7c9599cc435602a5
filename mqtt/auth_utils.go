// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const (
	saltLength     = 8
	gcmNonceLength = 12
	pbkdf2Rounds   = 10000
	aesKeyLength   = 32
)

// loadCACertPool loads a CA certificate pool from the specified file.
func loadCACertPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("no certificates found in CA file")
	}
	return caCertPool, nil
}

// decryptPEMBlock decrypts a PEM block using PBKDF2 and AES-GCM. The block
// bytes are the salt followed by the nonce and the sealed key.
func decryptPEMBlock(block *pem.Block, password []byte) ([]byte, error) {
	if block == nil {
		return nil, errors.New("PEM block is nil")
	}
	if len(block.Bytes) < saltLength {
		return nil, errors.New("PEM block is too short")
	}

	salt := block.Bytes[:saltLength]
	key := pbkdf2.Key(password, salt, pbkdf2Rounds, aesKeyLength, sha3.New256)
	return aesGCMDecrypt(block.Bytes[saltLength:], key)
}

func aesGCMDecrypt(encrypted, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if len(encrypted) < gcmNonceLength {
		return nil, errors.New("ciphertext in PEM block is too short")
	}
	nonce, ciphertext := encrypted[:gcmNonceLength], encrypted[gcmNonceLength:]

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// loadX509KeyPairWithPassword loads a certificate with a key that was
// encrypted with decryptPEMBlock's scheme.
func loadX509KeyPairWithPassword(
	certFile,
	keyFile,
	password string,
) (tls.Certificate, error) {
	certPEMBlock, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEMBlock, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyDERBlock, _ := pem.Decode(keyPEMBlock)
	if keyDERBlock == nil {
		return tls.Certificate{}, errors.New(
			"failed to decode PEM block containing private key",
		)
	}

	// x509.DecryptPEMBlock is deprecated due to insecurity, and x509 library
	// doesn't want to support it: https://github.com/golang/go/issues/8860
	decryptedDERBlock, err := decryptPEMBlock(keyDERBlock, []byte(password))
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  keyDERBlock.Type,
		Bytes: decryptedDERBlock,
	})
	return tls.X509KeyPair(certPEMBlock, keyPEM)
}
