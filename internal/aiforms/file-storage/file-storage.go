// Хранилище файлов: изображения шаблонов и заявки в поддержку.
//
// Поддерживаются два бэкенда: S3-совместимое хранилище через minio и локальная директория
// для разработки и тестов. Имена объектов могут содержать "/" (например support-tickets/ticket-1700000000000.json).
package filestorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	UploadTries = 3
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

type FileStorage interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Load(ctx context.Context, name string) ([]byte, error)
	LoadReader(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Exist(ctx context.Context, name string) (bool, error)
	GetFileInfo(ctx context.Context, name string) (*FileInfo, error)
	List(ctx context.Context, prefix string, fn func(FileInfo) error) error
}

// cleanName проверяет имя объекта: относительный путь без выхода за корень хранилища
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	clean := path.Clean(name)
	if name == "" || clean == "." || clean != name || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidName
	}
	return clean, nil
}

type LocalStorage struct {
	rootDir string
}

func NewLocalStorage(rootPath string) (*LocalStorage, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{rootPath}, nil
}

func (s *LocalStorage) path(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Save(_ context.Context, name string, data []byte, _ string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (s *LocalStorage) Load(ctx context.Context, name string) ([]byte, error) {
	r, err := s.LoadReader(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *LocalStorage) LoadReader(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) Exist(ctx context.Context, name string) (bool, error) {
	_, err := s.GetFileInfo(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStorage) GetFileInfo(_ context.Context, name string) (*FileInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	clean, _ := cleanName(name)
	return &FileInfo{
		Name:        clean,
		Size:        st.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
		CreatedAt:   st.ModTime(),
	}, nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string, fn func(FileInfo) error) error {
	return filepath.WalkDir(s.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.rootDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := s.GetFileInfo(ctx, rel)
		if err != nil {
			return err
		}
		return fn(*info)
	})
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	retryDelay time.Duration
}

// NewMinioStorage подключается к S3-совместимому хранилищу и создает бакет, если его нет.
//
// Параметры:
//   - endpoint: адрес хранилища без схемы
//   - accessKeyID, secretAccessKey: учетные данные
//   - useSSL: использовать https
//   - bucketName: имя бакета
//   - region: регион бакета, может быть пустым
func NewMinioStorage(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool, bucketName, region string) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client: client, bucketName: bucketName, retryDelay: 2 * time.Second}, nil
}

func (s *MinioStorage) Save(ctx context.Context, name string, data []byte, contentType string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	for i := range UploadTries {
		_, err = s.client.PutObject(ctx,
			s.bucketName,
			name,
			bytes.NewReader(data),
			int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType},
		)
		if err == nil {
			return nil
		}
		resp := minio.ToErrorResponse(err)
		slog.Error("Upload file to minio", "name", name, "try", i+1, "code", resp.StatusCode, "msg", resp.Message)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return err
}

func (s *MinioStorage) Load(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.LoadReader(ctx, name)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	return data, convertMinioErr(err)
}

func (s *MinioStorage) LoadReader(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, name, minio.GetObjectOptions{})
	return obj, convertMinioErr(err)
}

func (s *MinioStorage) Delete(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucketName, name, minio.RemoveObjectOptions{})
}

func (s *MinioStorage) Exist(ctx context.Context, name string) (bool, error) {
	_, err := s.GetFileInfo(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *MinioStorage) GetFileInfo(ctx context.Context, name string) (*FileInfo, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	stat, err := s.client.StatObject(ctx, s.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		return nil, convertMinioErr(err)
	}

	return &FileInfo{
		Name:        name,
		Size:        stat.Size,
		ContentType: stat.ContentType,
		CreatedAt:   stat.LastModified,
	}, nil
}

func (s *MinioStorage) List(ctx context.Context, prefix string, fn func(FileInfo) error) error {
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := fn(FileInfo{
			Name:        obj.Key,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			CreatedAt:   obj.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

func convertMinioErr(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
