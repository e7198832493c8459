package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/stemsi/quizspin-backend/internal/model"
)

// maxBankBytes caps how much of an upstream response is read.
const maxBankBytes = 16 << 20

// BankSource loads a complete, normalized question bank.
type BankSource interface {
	Name() string
	LoadBank(ctx context.Context) (model.Bank, error)
}

// HTTPBankSource fetches the bank from a spreadsheet web-app endpoint.
type HTTPBankSource struct {
	url    string
	client *http.Client
}

// NewHTTPBankSource creates an HTTPBankSource with the given request timeout.
func NewHTTPBankSource(url string, timeout time.Duration) *HTTPBankSource {
	return &HTTPBankSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPBankSource) Name() string { return "http" }

// LoadBank performs a GET and parses whichever layout comes back.
func (s *HTTPBankSource) LoadBank(ctx context.Context) (model.Bank, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build bank request: %w", err)
	}
	req.Header.Set("User-Agent", "QuizSpin/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bank: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch bank: upstream responded %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBankBytes))
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	return ParseBank(data)
}

// FileBankSource reads the bundled local copy of the bank.
type FileBankSource struct {
	path string
}

// NewFileBankSource creates a FileBankSource reading path.
func NewFileBankSource(path string) *FileBankSource {
	return &FileBankSource{path: path}
}

func (s *FileBankSource) Name() string { return "file" }

// LoadBank reads and parses the file on every call.
func (s *FileBankSource) LoadBank(ctx context.Context) (model.Bank, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read bank file: %w", err)
	}
	return ParseBank(data)
}
