package capture

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const (
	certFileName = "chatlens-ca.pem"
	keyFileName  = "chatlens-ca-key.pem"
)

// CA is the local root certificate authority used to intercept HTTPS LLM
// traffic through the capture proxy.
type CA struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
	path string
}

// EnsureCA loads the CA under caPath, generating a fresh one if none exists.
func EnsureCA(caPath string) (*CA, error) {
	if CAExists(caPath) {
		return LoadCA(caPath)
	}
	return GenerateCA(caPath)
}

// CAExists reports whether both certificate and key are present.
func CAExists(caPath string) bool {
	if _, err := os.Stat(filepath.Join(caPath, certFileName)); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(caPath, keyFileName))
	return err == nil
}

// GenerateCA creates a self-signed root CA and writes it under caPath.
func GenerateCA(caPath string) (*CA, error) {
	if err := os.MkdirAll(caPath, 0755); err != nil {
		return nil, fmt.Errorf("create CA directory: %w", err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Chatlens"},
			CommonName:   "Chatlens Root CA",
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	ca := &CA{cert: cert, key: privateKey, path: caPath}
	if err := ca.save(); err != nil {
		return nil, err
	}
	return ca, nil
}

// LoadCA reads an existing CA from disk.
func LoadCA(caPath string) (*CA, error) {
	certPEM, err := os.ReadFile(filepath.Join(caPath, certFileName))
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(filepath.Join(caPath, keyFileName))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("decode private key PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &CA{cert: cert, key: key, path: caPath}, nil
}

func (ca *CA) save() error {
	certFile, err := os.Create(filepath.Join(ca.path, certFileName))
	if err != nil {
		return fmt.Errorf("create cert file: %w", err)
	}
	defer certFile.Close()

	if err := pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: ca.cert.Raw}); err != nil {
		return fmt.Errorf("encode certificate: %w", err)
	}

	keyFile, err := os.OpenFile(filepath.Join(ca.path, keyFileName), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	defer keyFile.Close()

	if err := pem.Encode(keyFile, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(ca.key),
	}); err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}
	return nil
}

// CertPath points at the PEM certificate, for exporting into client trust
// stores.
func (ca *CA) CertPath() string {
	return filepath.Join(ca.path, certFileName)
}

func (ca *CA) Cert() *x509.Certificate { return ca.cert }

func (ca *CA) Key() *rsa.PrivateKey { return ca.key }
