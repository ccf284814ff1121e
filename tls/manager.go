package tls

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jittering/truststore"
	"go.uber.org/zap"
)

// Authority creates the local CA, trusts it and signs server certificates.
type Authority interface {
	Install() error
	MakeCert(hosts []string, dir string) (certFile, keyFile string, err error)
}

// truststoreAuthority keeps its CA under caDir.
type truststoreAuthority struct {
	caDir string
}

func (a truststoreAuthority) prepare() error {
	if err := os.MkdirAll(a.caDir, 0o700); err != nil {
		return fmt.Errorf("create CA directory: %w", err)
	}
	return os.Setenv("CAROOT", a.caDir)
}

func (a truststoreAuthority) Install() error {
	if err := a.prepare(); err != nil {
		return err
	}
	ml, err := truststore.NewLib()
	if err != nil {
		return fmt.Errorf("initialize truststore: %w", err)
	}
	return ml.Install()
}

func (a truststoreAuthority) MakeCert(hosts []string, dir string) (string, string, error) {
	if err := a.prepare(); err != nil {
		return "", "", err
	}
	ml, err := truststore.NewLib()
	if err != nil {
		return "", "", fmt.Errorf("initialize truststore: %w", err)
	}
	cert, err := ml.MakeCert(hosts, dir)
	if err != nil {
		return "", "", err
	}
	return cert.CertFile, cert.KeyFile, nil
}

// Manager keeps a server certificate valid for the station's current hosts.
type Manager struct {
	tlsDir     string
	caCertFile string
	certFile   string
	keyFile    string
	hostsFile  string

	authority Authority
	logger    *zap.Logger
}

// NewManager stores everything below configDir. A nil authority uses the
// system trust store.
func NewManager(configDir string, authority Authority, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	tlsDir := filepath.Join(configDir, "tls")
	caDir := filepath.Join(configDir, "ca")
	if authority == nil {
		authority = truststoreAuthority{caDir: caDir}
	}
	return &Manager{
		tlsDir:     tlsDir,
		caCertFile: filepath.Join(caDir, "rootCA.pem"),
		certFile:   filepath.Join(tlsDir, "server.crt"),
		keyFile:    filepath.Join(tlsDir, "server.key"),
		hostsFile:  filepath.Join(tlsDir, "hosts.txt"),
		authority:  authority,
		logger:     logger.Named("tls"),
	}
}

// Ensure returns a certificate and key for hosts, issuing a new pair when
// none exists or the host set changed since the last one.
func (m *Manager) Ensure(hosts []string) (certFile, keyFile string, err error) {
	if err := os.MkdirAll(m.tlsDir, 0o700); err != nil {
		return "", "", fmt.Errorf("create TLS directory: %w", err)
	}
	hosts = normalizeHosts(hosts)

	switch {
	case !m.certsExist():
		m.logger.Info("no certificate found, issuing one", zap.Strings("hosts", hosts))
	case m.hostsChanged(hosts):
		m.logger.Info("host set changed, reissuing certificate", zap.Strings("hosts", hosts))
	default:
		m.logger.Debug("using existing certificate", zap.String("cert", m.certFile))
		return m.certFile, m.keyFile, nil
	}

	if err := m.issue(hosts); err != nil {
		return "", "", err
	}
	return m.certFile, m.keyFile, nil
}

func (m *Manager) issue(hosts []string) error {
	m.logger.Info("installing local CA into the system trust store (a password prompt may appear)")
	if err := m.authority.Install(); err != nil {
		return fmt.Errorf("install CA: %w", err)
	}

	cert, key, err := m.authority.MakeCert(hosts, m.tlsDir)
	if err != nil {
		return fmt.Errorf("issue certificate: %w", err)
	}
	if cert != m.certFile {
		if err := os.Rename(cert, m.certFile); err != nil {
			return fmt.Errorf("rename certificate: %w", err)
		}
	}
	if key != m.keyFile {
		if err := os.Rename(key, m.keyFile); err != nil {
			return fmt.Errorf("rename key: %w", err)
		}
	}

	if err := os.WriteFile(m.hostsFile, []byte(strings.Join(hosts, "\n")+"\n"), 0o600); err != nil {
		m.logger.Warn("failed to record certificate hosts", zap.Error(err))
	}

	fields := []zap.Field{zap.String("cert", m.certFile)}
	if fp, err := m.CAFingerprint(); err == nil {
		fields = append(fields, zap.String("caFingerprint", fp))
	}
	m.logger.Info("certificate issued", fields...)
	return nil
}

func (m *Manager) certsExist() bool {
	_, certErr := os.Stat(m.certFile)
	_, keyErr := os.Stat(m.keyFile)
	return certErr == nil && keyErr == nil
}

// hostsChanged compares against the recorded set; an unreadable record
// counts as changed.
func (m *Manager) hostsChanged(hosts []string) bool {
	data, err := os.ReadFile(m.hostsFile)
	if err != nil {
		return true
	}
	var cached []string
	for _, line := range strings.Split(string(data), "\n") {
		if h := strings.TrimSpace(line); h != "" {
			cached = append(cached, h)
		}
	}
	return !slices.Equal(normalizeHosts(cached), normalizeHosts(hosts))
}

// CACertFile is the PEM file of the local CA.
func (m *Manager) CACertFile() string {
	return m.caCertFile
}

// ReadCACert returns the local CA as PEM.
func (m *Manager) ReadCACert() ([]byte, error) {
	return os.ReadFile(m.caCertFile)
}

// CAFingerprint returns the SHA-256 of the CA certificate as colon
// separated hex.
func (m *Manager) CAFingerprint() (string, error) {
	certPEM, err := m.ReadCACert()
	if err != nil {
		return "", fmt.Errorf("read CA certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", errors.New("CA certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse CA certificate: %w", err)
	}
	return fingerprint(cert.Raw), nil
}

func fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
