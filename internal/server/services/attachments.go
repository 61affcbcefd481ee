package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	sc "github.com/dmitrijs2005/boardforge/internal/server/config"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

// PresignExpiry bounds how long an attachment URL stays usable.
const PresignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AttachmentService hands out presigned object storage URLs for card
// attachments and records their metadata.
type AttachmentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	clock       timex.Clock
	logger      logging.Logger
}

func NewAttachmentService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config,
	clock timex.Clock, logger logging.Logger) *AttachmentService {
	return &AttachmentService{
		db:          db,
		repomanager: m,
		config:      config,
		clock:       clock,
		logger:      logger.With("module", "attachments"),
	}
}

func storageKey(teamID, cardID int64, id string) string {
	return fmt.Sprintf("teams/%d/cards/%d/%s", teamID, cardID, id)
}

func (s *AttachmentService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// RequestUpload records an attachment and returns a presigned PUT URL for
// its bytes.
func (s *AttachmentService) RequestUpload(ctx context.Context, teamID, cardID, userID int64, fileName string) (*models.PresignedURL, error) {
	name := path.Base(strings.TrimSpace(fileName))
	if blank(fileName) || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}

	id := uuid.NewString()
	attachment := &models.CardAttachment{
		ID:         id,
		CardID:     cardID,
		FileName:   name,
		StorageKey: storageKey(teamID, cardID, id),
		UploadedBy: userID,
		CreatedAt:  s.clock.Now(),
	}

	var result *models.PresignedURL
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cardInTeam(ctx, s.repomanager, tx, teamID, cardID); err != nil {
			return err
		}

		pc, err := s.getPresignClient(ctx)
		if err != nil {
			return err
		}
		bucket := s.config.S3Bucket
		req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
			Bucket: &bucket,
			Key:    &attachment.StorageKey,
		}, s3.WithPresignExpires(PresignExpiry))
		if err != nil {
			return fmt.Errorf("presign put: %w", err)
		}

		if err := s.repomanager.Attachments(tx).Create(ctx, attachment); err != nil {
			return err
		}

		result = &models.PresignedURL{
			AttachmentID: id,
			URL:          req.URL,
			Method:       http.MethodPut,
			ExpiresAt:    attachment.CreatedAt.Add(PresignExpiry),
		}
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "request upload", err)
	}
	return result, nil
}

// DownloadURL returns a presigned GET URL for an attachment of the card.
func (s *AttachmentService) DownloadURL(ctx context.Context, teamID, cardID int64, attachmentID string) (*models.PresignedURL, error) {
	if _, err := uuid.Parse(attachmentID); err != nil {
		return nil, fmt.Errorf("%w: attachment %q", common.ErrorNotFound, attachmentID)
	}

	if err := cardInTeam(ctx, s.repomanager, s.db, teamID, cardID); err != nil {
		return nil, logInternal(ctx, s.logger, "download url", err)
	}
	attachment, err := s.repomanager.Attachments(s.db).Get(ctx, cardID, attachmentID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "download url", err)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "download url", err)
	}
	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &attachment.StorageKey,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, logInternal(ctx, s.logger, "download url", fmt.Errorf("presign get: %w", err))
	}

	return &models.PresignedURL{
		AttachmentID: attachment.ID,
		URL:          req.URL,
		Method:       http.MethodGet,
		ExpiresAt:    s.clock.Now().Add(PresignExpiry),
	}, nil
}
