package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// uploadImage streams the image archive to the runtime as the multipart
// field "image". A 409 means the image is already loaded and is not an error.
func (c *Client) uploadImage(ctx context.Context, accessToken, artifactPath string) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open image archive: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("image", filepath.Base(artifactPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	_, err = c.do(ctx, http.MethodPost, imagesPath, accessToken, mw.FormDataContentType(), pr)
	// Unblock the writer goroutine if the request ended before the body was consumed.
	pr.Close()

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		slog.Info("image already loaded", "artifact", filepath.Base(artifactPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("upload image %s: %w", filepath.Base(artifactPath), err)
	}

	slog.Info("image uploaded", "artifact", filepath.Base(artifactPath))
	return nil
}
