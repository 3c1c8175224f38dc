package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured indica ausência de backend de armazenamento.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// NoopUploader é usado quando nenhum backend foi configurado.
type NoopUploader struct{}

// Upload sempre retorna ErrNotConfigured.
func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}
