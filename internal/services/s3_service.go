package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"crm-sync/config"
	"crm-sync/internal/utils"
)

// S3Service sobe anexos (imagens, áudios) para o bucket e devolve a URL
// pública gravada no histórico.
type S3Service struct {
	s3Client *s3.S3
	config   *config.S3Config
}

func NewS3Service(cfg *config.S3Config) (*S3Service, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:    aws.String(cfg.ServiceUrl),
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao criar sessão do S3: %v", err)
	}

	return &S3Service{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

func (s *S3Service) UploadFile(file multipart.File, fileHeader *multipart.FileHeader) (string, error) {
	buffer := make([]byte, fileHeader.Size)
	if _, err := file.Read(buffer); err != nil {
		return "", fmt.Errorf("erro ao ler arquivo: %v", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("erro ao resetar arquivo: %v", err)
	}

	// Nome único para evitar colisão no bucket
	ext := filepath.Ext(fileHeader.Filename)
	filename := fmt.Sprintf("%d%s", time.Now().UnixNano(), ext)

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	utils.LogInfo("Iniciando upload para S3: %s", filename)

	url, err := s.UploadBytes(buffer, filename, contentType)
	if err != nil {
		return "", err
	}
	utils.LogInfo("Upload concluído: %s", url)
	return url, nil
}

func (s *S3Service) UploadBytes(data []byte, fileName string, contentType string) (string, error) {
	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.config.BucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	_, err := s.s3Client.PutObject(params)
	if err != nil {
		return "", fmt.Errorf("erro ao fazer upload para S3: %v", err)
	}

	return fmt.Sprintf("%s/%s", s.config.BucketUrl, fileName), nil
}
