package config

import (
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const sessionPEMType = "QUICSDN SESSION STATE"

// SaveSession PEM-wraps a TLS session ticket for later 0-RTT resumption
// (spec.md §6 "Persisted state ... PEM-wrapped session for the latter").
// The file is named by a fresh uuid so a server process can retain
// sessions for multiple client identities under one state directory
// without collisions (original_source's app_client.cc keeps exactly one
// session file per process; this generalizes that to multiple peers).
func SaveSession(dir string, state []byte) (string, error) {
	name := uuid.NewString() + ".session.pem"
	path := filepath.Join(dir, name)
	block := &pem.Block{Type: sessionPEMType, Bytes: state}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSession reads back a session file written by SaveSession.
func LoadSession(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(buf)
	if block == nil || block.Type != sessionPEMType {
		return nil, fmt.Errorf("config: %s is not a quicsdn session file", path)
	}
	return block.Bytes, nil
}

// LoadTLSCredentials loads the certificate/key pair named in a Tunnel
// config, for use as the tls.Config handed to the TLS collaborator
// (spec.md §6 "TLS credential loading"). It does not load a CA bundle.
func LoadTLSCredentials(certFile, keyFile string) (tls.Certificate, error) {
	return tls.LoadX509KeyPair(certFile, keyFile)
}
