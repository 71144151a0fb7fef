package submit

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"labmonitor/shared/types"
)

const (
	// SubmitPath is appended to the configured service URL.
	SubmitPath     = "/LabMonitorDB/api/submit-sensor-data"
	DefaultTimeout = 10 * time.Second
)

type HTTPOptions struct {
	BaseURL   string
	SecretKey string
	// CertPath names a PEM root CA trusted in addition to the system pool.
	CertPath string
	Timeout  time.Duration
}

// HTTP posts records as JSON documents.
type HTTP struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

// NewHTTP builds a submitter for o. A custom CA that cannot be loaded is
// logged and the system roots are used instead.
func NewHTTP(o HTTPOptions, logger *slog.Logger) (*HTTP, error) {
	base := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("submit: empty service URL")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.CertPath != "" {
		pool, err := loadRoots(o.CertPath)
		if err != nil {
			logger.Warn("custom root CA not loaded; using system roots", "cert_path", o.CertPath, "error", err)
		} else {
			transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
			logger.Info("custom root CA loaded", "cert_path", o.CertPath)
		}
	}

	return &HTTP{
		url:    base + SubmitPath,
		secret: o.SecretKey,
		client: &http.Client{Timeout: timeout, Transport: transport},
		now:    time.Now,
		logger: logger,
	}, nil
}

func (h *HTTP) String() string { return "http " + h.url }

// Submit stamps the record with the submission time and posts it. Only
// 200 and 201 count as success.
func (h *HTTP) Submit(ctx context.Context, rec types.Record) error {
	rec.ClientSubmissionTime = h.now().UnixMilli()
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.secret != "" {
		req.Header.Set("Authorization", "Bearer "+h.secret)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", h.url, err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		h.logger.Debug("record submitted", "url", h.url, "status", resp.StatusCode)
		return nil
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
}

func loadRoots(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}
