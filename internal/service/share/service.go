package share

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// Service renders session resume links as QR codes.
type Service struct {
	baseURL string
}

// NewService wires the QR service; baseURL is the public frontend origin.
func NewService(baseURL string) *Service {
	return &Service{baseURL: baseURL}
}

// SessionQR returns a PNG QR code of size pixels encoding the resume link
// for sessionID.
func (s *Service) SessionQR(sessionID string, size int) ([]byte, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if size <= 0 {
		size = 256
	}

	link := fmt.Sprintf("%s/chat?session=%s", s.baseURL, url.QueryEscape(sessionID))
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return png, nil
}
