// Package preview строит JPEG-превью версий документов и кеширует их в объектном хранилище.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/bimg"

	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

const (
	maxImageSize   = 1024 // максимальный размер превью в пикселях
	jpegQuality    = 85
	maxSourceBytes = 50 * 1024 * 1024
	convertTimeout = 60 * time.Second
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrUnsupported = errors.New("preview is not supported for this file type")

// Supported сообщает, можно ли построить превью для MIME-типа
func Supported(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", mimePDF, mimeDOCX, mimeXLSX:
		return true
	}
	return false
}

type Service struct {
	storage storage.Storage
	tmpDir  string
	log     *slog.Logger
}

func NewService(storage storage.Storage, log *slog.Logger) *Service {
	return &Service{
		storage: storage,
		tmpDir:  filepath.Join(os.TempDir(), "dealdocs-previews"),
		log:     log.With("component", "preview"),
	}
}

// Preview возвращает превью версии, генерируя и сохраняя его при первом запросе.
// Версии неизменяемы, поэтому сохраненное превью никогда не устаревает.
func (s *Service) Preview(ctx context.Context, v *domain.Version) ([]byte, error) {
	const op = "Preview"

	if !Supported(v.MIMEType) {
		return nil, domain.Invalid(op, fmt.Sprintf("preview is not available for %s", v.MIMEType))
	}

	key := storage.PreviewPath(v.ID)
	if cached, err := s.readObject(ctx, key, maxSourceBytes); err == nil {
		return cached, nil
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		s.log.Warn("failed to read cached preview", "version_id", v.ID, "error", err)
	}

	source, err := s.readObject(ctx, v.StoragePath, maxSourceBytes)
	if err != nil {
		return nil, domain.StorageFailure(op, err)
	}

	data, err := s.generate(ctx, v.MIMEType, source)
	if err != nil {
		s.log.Error("failed to generate preview", "version_id", v.ID, "mime_type", v.MIMEType, "error", err)
		return nil, fmt.Errorf("failed to generate preview: %w", err)
	}

	if _, err := s.storage.Upload(ctx, key, data, "image/jpeg"); err != nil {
		s.log.Warn("failed to store preview", "version_id", v.ID, "error", err)
	}
	return data, nil
}

func (s *Service) readObject(ctx context.Context, key string, limit int64) ([]byte, error) {
	obj, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(io.LimitReader(obj, limit))
}

func (s *Service) generate(ctx context.Context, mimeType string, data []byte) ([]byte, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return optimizeImage(data)
	case mimeType == mimePDF:
		return s.pdfPreview(ctx, data)
	case mimeType == mimeDOCX:
		return s.officePreview(ctx, data, "input.docx", "pdf:writer_pdf_Export")
	case mimeType == mimeXLSX:
		return s.officePreview(ctx, data, "input.xlsx", "pdf:calc_pdf_Export")
	default:
		return nil, ErrUnsupported
	}
}

func (s *Service) workDir() (string, error) {
	dir := filepath.Join(s.tmpDir, fmt.Sprintf("preview_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	return dir, nil
}

// pdfPreview рендерит первую страницу через pdftoppm
func (s *Service) pdfPreview(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := s.workDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write PDF file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	outputPath := filepath.Join(dir, "output")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-f", "1",
		"-l", "1",
		"-scale-to", fmt.Sprintf("%d", maxImageSize),
		"-singlefile",
		pdfPath,
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to convert PDF: %w (stderr: %s)", err, stderr.String())
	}

	img, err := os.ReadFile(outputPath + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}
	return optimizeImage(img)
}

// officePreview конвертирует документ в PDF через LibreOffice и рендерит первую страницу
func (s *Service) officePreview(ctx context.Context, data []byte, fileName, filter string) ([]byte, error) {
	dir, err := s.workDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, fileName)
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	if _, err := exec.LookPath("soffice"); err != nil {
		return nil, fmt.Errorf("libreoffice not found: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "soffice",
		"--headless",
		"--convert-to", filter,
		"--outdir", dir,
		inputPath,
	)
	cmd.Env = append(os.Environ(), "HOME="+dir, "TMPDIR="+dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("failed to convert %s to PDF: %w (output: %s)", fileName, err, string(out))
	}

	pdfPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".pdf"
	pdfData, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted PDF: %w", err)
	}
	return s.pdfPreview(ctx, pdfData)
}

// optimizeImage уменьшает изображение до maxImageSize по большей стороне и кодирует в JPEG
func optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := fitDimensions(size.Width, size.Height, maxImageSize)
	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return processed, nil
}

// fitDimensions сохраняет пропорции; изображения меньше предела не увеличиваются
func fitDimensions(width, height, maxSize int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, max(1, height*maxSize/width)
	}
	return max(1, width*maxSize/height), maxSize
}
