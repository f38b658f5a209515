// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Package symenc implements the symmetric encryption used by secure channels:
// AES-128 in CBC mode with PKCS#7 padding and a random IV that is appended to
// the ciphertext.
package symenc

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/pkg/errors"
)

// KeySize is the required key length in bytes.
const KeySize = 16

// BlockSize is the cipher block size, which is also the IV length.
const BlockSize = aes.BlockSize

var (
	// ErrInvalidKey is returned if the key doesn't have length KeySize.
	ErrInvalidKey = errors.New("symenc: invalid key length")

	// ErrInvalidLength is returned by Decrypt if the input can't be a
	// ciphertext followed by an IV.
	ErrInvalidLength = errors.New("symenc: invalid input length")

	// ErrInvalidPadding is returned by Decrypt if the decrypted plaintext
	// isn't correctly padded. This is what a wrong key typically results
	// in.
	ErrInvalidPadding = errors.New("symenc: invalid padding")
)

// Encrypt encrypts plaintext with key using a fresh IV read from randr. The
// output is ciphertext || IV, where "||" is concatenation of byte slices.
//
// See also Decrypt.
func Encrypt(randr io.Reader, key, plaintext []byte) ([]byte, error) {
	iv := make([]byte, BlockSize)
	if _, err := io.ReadFull(randr, iv); err != nil {
		return nil, errors.Wrap(err, "symenc: generating IV")
	}
	return EncryptWithIV(key, iv, plaintext)
}

// EncryptWithIV is like Encrypt but uses the provided IV.
func EncryptWithIV(key, iv, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "got %d bytes, expected %d", len(key), KeySize)
	}
	if len(iv) != BlockSize {
		return nil, errors.Errorf("symenc: got IV length %d, expected %d", len(iv), BlockSize)
	}
	ciph, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := addPadding(BlockSize, plaintext)
	res := make([]byte, len(padded)+BlockSize)
	cipher.NewCBCEncrypter(ciph, iv).CryptBlocks(res[:len(padded)], padded)
	copy(res[len(padded):], iv)
	return res, nil
}

// Decrypt reverses Encrypt. The last BlockSize bytes of input are the IV.
//
// On success the plaintext is returned together with a nil error.
func Decrypt(key, input []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "got %d bytes, expected %d", len(key), KeySize)
	}
	// At least one block of ciphertext (padding is always present) and the
	// IV.
	if len(input) < 2*BlockSize || len(input)%BlockSize != 0 {
		return nil, errors.Wrapf(ErrInvalidLength, "got %d bytes", len(input))
	}
	ciphertext := input[:len(input)-BlockSize]
	iv := input[len(input)-BlockSize:]

	ciph, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(ciph, iv).CryptBlocks(plaintext, ciphertext)
	return removePadding(BlockSize, plaintext)
}

// addPadding pads "input" using the padding algorithm from
// https://tools.ietf.org/html/rfc5652#section-6.3
func addPadding(blockSize int, input []byte) []byte {
	out := make([]byte, blockSize*(len(input)/blockSize+1))
	copy(out, input)
	b := byte(blockSize - len(input)%blockSize)
	for i := len(input); i < len(out); i++ {
		out[i] = b
	}
	return out
}

// removePadding removes the padding from "input". See also addPadding.
func removePadding(blockSize int, input []byte) ([]byte, error) {
	if len(input) == 0 || len(input)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	b := input[len(input)-1]
	if b == 0 || int(b) > blockSize {
		return nil, ErrInvalidPadding
	}
	if !bytes.Equal(input[len(input)-int(b):], bytes.Repeat([]byte{b}, int(b))) {
		return nil, ErrInvalidPadding
	}
	return input[:len(input)-int(b)], nil
}
