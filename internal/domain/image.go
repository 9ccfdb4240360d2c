package domain

import "context"

// File is a local image picked in the authoring form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether no file was supplied.
func (f *File) Empty() bool {
	return f == nil || len(f.Data) == 0
}

// ImageHost uploads binaries and issues stable URLs for them. Failures
// are reported as *UploadError.
type ImageHost interface {
	Upload(ctx context.Context, file *File) (string, error)
}

// FileStore abstracts raw file byte storage.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
