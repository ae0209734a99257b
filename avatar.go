package main

import (
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	avatarMaxBytes = 5 * 1024 * 1024
	avatarSize     = 256
)

var errBadAvatar = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")

// saveAvatar decodes an uploaded avatar, squares it to a thumbnail and
// writes it under the upload base dir. Returns the public relative path
// and stored content type.
func saveAvatar(file *multipart.FileHeader) (string, string, error) {
	if file.Size > avatarMaxBytes {
		return "", "", errors.New("file too large (max 5MB)")
	}
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", "", errBadAvatar
	}
	thumb := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
	relPath := filepath.Join("avatars", uuid.NewString()+".jpg")
	fullPath := filepath.Join(uploadBaseDir(), relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", "", err
	}
	if err := imaging.Save(thumb, fullPath, imaging.JPEGQuality(85)); err != nil {
		return "", "", err
	}
	// always re-encoded to JPEG regardless of the source format
	return relPath, "image/jpeg", nil
}
