package tls_test

import (
	"crypto/x509"
	"net"
	"testing"

	"github.com/grexie/confidential-defi/pkg/tls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateServerCert(t *testing.T) {
	cert, err := tls.CreateServerCert("api.example.test", "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"api.example.test"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.True(t, leaf.IPAddresses[0].Equal(net.ParseIP("10.0.0.1")))
	assert.False(t, leaf.IsCA)
	assert.NoError(t, leaf.VerifyHostname("api.example.test"))
}

func TestLoadServerCertRequiresBothFiles(t *testing.T) {
	_, err := tls.LoadServerCert("cert.pem", "")
	assert.Error(t, err)

	cert, err := tls.LoadServerCert("", "")
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("localhost"))
}
