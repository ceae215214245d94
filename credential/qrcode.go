package credential

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// RenderQR encodes content as a PNG QR code with high error correction.
func RenderQR(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.High, qrSize)
}

// CloudinaryStore uploads rendered QR codes to Cloudinary.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %v", err)
	}
	return &CloudinaryStore{cld: cld, folder: "tickets"}, nil
}

// PublishQR renders token and uploads it under the ticket id, returning the
// secure URL.
func (s *CloudinaryStore) PublishQR(ctx context.Context, ticketID, token string) (string, error) {
	png, err := RenderQR(token)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(png), uploader.UploadParams{
		Folder:   s.folder,
		PublicID: ticketID,
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %v", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}
