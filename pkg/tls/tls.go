package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

const certLifetime = 28 * 24 * time.Hour

func certTemplate(hosts []string) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	if serialNumber, err := rand.Int(rand.Reader, serialNumberLimit); err != nil {
		return nil, errors.New("failed to generate serial number: " + err.Error())
	} else {
		tmpl := x509.Certificate{
			SerialNumber:          serialNumber,
			Subject:               pkix.Name{CommonName: "Confidential DeFi API", Organization: []string{"Confidential DeFi"}},
			NotBefore:             time.Now().Add(-time.Minute),
			NotAfter:              time.Now().Add(certLifetime),
			BasicConstraintsValid: true,
		}

		for _, h := range hosts {
			if ip := net.ParseIP(h); ip != nil {
				tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			} else if h != "" {
				tmpl.DNSNames = append(tmpl.DNSNames, h)
			}
		}

		return &tmpl, nil
	}
}

func createCert(template, parent *x509.Certificate, pub any, parentPriv any) (*x509.Certificate, []byte, error) {
	if certDER, err := x509.CreateCertificate(rand.Reader, template, parent, pub, parentPriv); err != nil {
		return nil, nil, err
	} else if cert, err := x509.ParseCertificate(certDER); err != nil {
		return nil, nil, err
	} else {
		return cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), nil
	}
}

// LoadServerCert loads a key pair from disk when both files are given and
// otherwise issues a throwaway certificate for hosts.
func LoadServerCert(certFile string, keyFile string, hosts ...string) (tls.Certificate, error) {
	if certFile != "" && keyFile != "" {
		return tls.LoadX509KeyPair(certFile, keyFile)
	} else if certFile != "" || keyFile != "" {
		return tls.Certificate{}, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set")
	}
	return CreateServerCert(hosts...)
}

// CreateServerCert issues a server certificate signed by a freshly generated
// root that is discarded afterwards.
func CreateServerCert(hosts ...string) (tls.Certificate, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}

	if rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err != nil {
		return tls.Certificate{}, err
	} else if rootCertTmpl, err := certTemplate(nil); err != nil {
		return tls.Certificate{}, fmt.Errorf("creating cert template: %v", err)
	} else {
		rootCertTmpl.IsCA = true
		rootCertTmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature

		if rootCert, _, err := createCert(rootCertTmpl, rootCertTmpl, &rootKey.PublicKey, rootKey); err != nil {
			return tls.Certificate{}, fmt.Errorf("error creating root cert: %v", err)
		} else if servKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err != nil {
			return tls.Certificate{}, fmt.Errorf("generating server key: %v", err)
		} else if servCertTmpl, err := certTemplate(hosts); err != nil {
			return tls.Certificate{}, fmt.Errorf("creating cert template: %v", err)
		} else {
			servCertTmpl.KeyUsage = x509.KeyUsageDigitalSignature
			servCertTmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

			if _, servCertPEM, err := createCert(servCertTmpl, rootCert, &servKey.PublicKey, rootKey); err != nil {
				return tls.Certificate{}, fmt.Errorf("error creating server cert: %v", err)
			} else if keyDER, err := x509.MarshalECPrivateKey(servKey); err != nil {
				return tls.Certificate{}, err
			} else if cert, err := tls.X509KeyPair(servCertPEM, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})); err != nil {
				return tls.Certificate{}, fmt.Errorf("invalid key pair: %v", err)
			} else {
				return cert, nil
			}
		}
	}
}
