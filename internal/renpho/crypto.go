// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

import (
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
)

// # Wire Codec
//
// The vendor protocol wraps every request body, and most response data
// fields, in AES-128-ECB with PKCS#7 padding under a fixed key. ECB provides
// no semantic confidentiality; this exists solely for compatibility with the
// legacy mobile protocol and must never be treated as a security boundary.

// Encrypt encrypts a plaintext payload and returns it base64-encoded, ready
// for the "encryptData" request envelope.
func Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher([]byte(encryptionKey))
	if err != nil {
		return "", &CodecError{Op: "encrypt", Cause: err}
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)

	ciphertext := make([]byte, len(padded))
	for offset := 0; offset < len(padded); offset += aes.BlockSize {
		block.Encrypt(ciphertext[offset:offset+aes.BlockSize], padded[offset:offset+aes.BlockSize])
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses [Encrypt]: base64-decode, block-decrypt, strip padding.
//
// It fails with a [*CodecError] when the input is not valid base64, not a
// multiple of the cipher block size, or unpads incorrectly.
func Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CodecError{Op: "decrypt", Cause: fmt.Errorf("invalid base64: %w", err)}
	}

	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", &CodecError{Op: "decrypt", Cause: fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(raw))}
	}

	block, err := aes.NewCipher([]byte(encryptionKey))
	if err != nil {
		return "", &CodecError{Op: "decrypt", Cause: err}
	}

	plaintext := make([]byte, len(raw))
	for offset := 0; offset < len(raw); offset += aes.BlockSize {
		block.Decrypt(plaintext[offset:offset+aes.BlockSize], raw[offset:offset+aes.BlockSize])
	}

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", &CodecError{Op: "decrypt", Cause: err}
	}

	return string(unpadded), nil
}

// pkcs7Pad appends PKCS#7 padding up to the next block boundary. A payload
// that is already block-aligned gains a full padding block.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("pkcs7: data is not block-aligned")
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("pkcs7: invalid padding length")
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("pkcs7: inconsistent padding bytes")
		}
	}

	return data[:len(data)-padLen], nil
}
