package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Decryptor is the opaque decrypt oracle: it yields a plaintext order or
// fails. Key handling lives entirely behind this boundary.
type Decryptor interface {
	Decrypt(payload string) (*OrderPayload, error)
}

// PassthroughDecryptor decodes a base64-wrapped plaintext order. It stands
// in for the real oracle in development and tests.
type PassthroughDecryptor struct{}

func (PassthroughDecryptor) Decrypt(payload string) (*OrderPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode order blob: %w", err)
	}
	var p OrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse order blob: %w", err)
	}
	return &p, nil
}
