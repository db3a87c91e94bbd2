// Package testcerts issues throwaway certificates for loopback TLS tests.
package testcerts

import (
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "math/big"
    "net"
    "os"
    "path/filepath"
    "testing"
    "time"
)

// Authority is a self-signed CA written to dir.
type Authority struct {
    CAFile string

    dir  string
    cert *x509.Certificate
    key  *ecdsa.PrivateKey
}

// New creates a CA and writes ca.crt into dir.
func New(t testing.TB, dir string) *Authority {
    t.Helper()
    key := mustKey(t)
    tmpl := &x509.Certificate{
        SerialNumber:          serial(t),
        Subject:               pkix.Name{CommonName: "clustercheck test CA"},
        NotBefore:             time.Now().Add(-time.Hour),
        NotAfter:              time.Now().Add(24 * time.Hour),
        IsCA:                  true,
        KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
        BasicConstraintsValid: true,
    }
    der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
    if err != nil { t.Fatalf("ca: %v", err) }
    cert, err := x509.ParseCertificate(der)
    if err != nil { t.Fatalf("ca parse: %v", err) }
    a := &Authority{CAFile: filepath.Join(dir, "ca.crt"), dir: dir, cert: cert, key: key}
    writePEM(t, a.CAFile, "CERTIFICATE", der)
    return a
}

// Issue signs a key pair valid for localhost and 127.0.0.1, usable by
// servers and clients, and writes <name>.crt and <name>.key. Issuing the
// same name again overwrites the files.
func (a *Authority) Issue(t testing.TB, name string) (certFile, keyFile string) {
    t.Helper()
    key := mustKey(t)
    tmpl := &x509.Certificate{
        SerialNumber: serial(t),
        Subject:      pkix.Name{CommonName: name},
        NotBefore:    time.Now().Add(-time.Hour),
        NotAfter:     time.Now().Add(24 * time.Hour),
        KeyUsage:     x509.KeyUsageDigitalSignature,
        ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        DNSNames:     []string{"localhost"},
        IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
    }
    der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, &key.PublicKey, a.key)
    if err != nil { t.Fatalf("issue %s: %v", name, err) }
    kder, err := x509.MarshalECPrivateKey(key)
    if err != nil { t.Fatalf("marshal key: %v", err) }
    certFile = filepath.Join(a.dir, name+".crt")
    keyFile = filepath.Join(a.dir, name+".key")
    writePEM(t, certFile, "CERTIFICATE", der)
    writePEM(t, keyFile, "EC PRIVATE KEY", kder)
    return certFile, keyFile
}

func mustKey(t testing.TB) *ecdsa.PrivateKey {
    key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { t.Fatalf("key: %v", err) }
    return key
}

func serial(t testing.TB) *big.Int {
    n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
    if err != nil { t.Fatalf("serial: %v", err) }
    return n
}

func writePEM(t testing.TB, path, typ string, der []byte) {
    b := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
    if err := os.WriteFile(path, b, 0o600); err != nil { t.Fatalf("write %s: %v", path, err) }
}
