package lib

import (
	"encoding/base64"
	"fmt"
	"os"
	"path"

	"github.com/yeqown/go-qrcode"
)

// RenderQRCodeDataURL renders content as a QR image and returns it as a
// base64 data URL suitable for storing on the ticket row and embedding in a
// page or e-mail without a second asset fetch.
func RenderQRCodeDataURL(content string) (string, error) {
	qrc, err := qrcode.New(content)
	if err != nil {
		return "", fmt.Errorf("qrcode: %w", err)
	}
	tmpdir, err := os.MkdirTemp("", "qrc")
	if err != nil {
		return "", fmt.Errorf("qrcode: %w", err)
	}
	defer os.RemoveAll(tmpdir)
	filepath := path.Join(tmpdir, "code.jpeg")
	if err := qrc.Save(filepath); err != nil {
		return "", fmt.Errorf("qrcode: saving image: %w", err)
	}
	raw, err := os.ReadFile(filepath)
	if err != nil {
		return "", fmt.Errorf("qrcode: reading image: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return fmt.Sprintf("data:image/jpeg;base64,%s", encoded), nil
}
