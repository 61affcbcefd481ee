package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	sc "github.com/dmitrijs2005/boardforge/internal/server/config"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

type presignCapture struct {
	putKey, getKey string
	bucket         string
	endpoint       string
}

// stubS3 replaces the S3 seams for the duration of the test.
func stubS3(t *testing.T, putErr error) *presignCapture {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	c := &presignCapture{}
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			c.endpoint = *opts.BaseEndpoint
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style addressing not enabled")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(*s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if putErr != nil {
			return nil, putErr
		}
		c.putKey, c.bucket = *in.Key, *in.Bucket
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/put/" + *in.Key, Method: "PUT"}, nil
	}
	presignGetObject = func(_ *s3.PresignClient, _ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		c.getKey, c.bucket = *in.Key, *in.Bucket
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/get/" + *in.Key, Method: "GET"}, nil
	}
	return c
}

func newAttachmentFixture(t *testing.T) (*AttachmentService, *fakeRepoManager, sqlmock.Sqlmock, *models.Card) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	card, err := rm.cards.Create(context.Background(), &models.Card{TeamID: 1, Title: "c", OwnerID: 5, CreatedBy: 5})
	require.NoError(t, err)

	cfg := &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "attachments",
	}
	return NewAttachmentService(db, rm, cfg, timex.NewFixedClock(testNow), logging.Nop{}), rm, mock, card
}

func TestAttachmentService_RequestUpload(t *testing.T) {
	capture := stubS3(t, nil)
	svc, rm, mock, card := newAttachmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	url, err := svc.RequestUpload(context.Background(), 1, card.ID, 5, "../../etc/report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "PUT", url.Method)
	assert.Equal(t, testNow.Add(PresignExpiry), url.ExpiresAt)
	assert.Equal(t, "attachments", capture.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", capture.endpoint)
	assert.Equal(t, storageKey(1, card.ID, url.AttachmentID), capture.putKey)
	assert.True(t, strings.HasSuffix(url.URL, capture.putKey))

	stored, err := rm.attachments.Get(context.Background(), card.ID, url.AttachmentID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", stored.FileName)
	assert.Equal(t, int64(5), stored.UploadedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachmentService_RequestUploadRejections(t *testing.T) {
	stubS3(t, nil)

	t.Run("blank file name", func(t *testing.T) {
		svc, _, _, card := newAttachmentFixture(t)
		_, err := svc.RequestUpload(context.Background(), 1, card.ID, 5, "  ")
		assert.ErrorIs(t, err, common.ErrorValidation)
	})

	t.Run("card of another team", func(t *testing.T) {
		svc, rm, mock, card := newAttachmentFixture(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := svc.RequestUpload(context.Background(), 2, card.ID, 5, "a.txt")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		assert.Empty(t, rm.attachments.rows)
	})
}

func TestAttachmentService_RequestUploadPresignFailure(t *testing.T) {
	stubS3(t, errors.New("sign-fail"))
	svc, rm, mock, card := newAttachmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RequestUpload(context.Background(), 1, card.ID, 5, "a.txt")
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.Empty(t, rm.attachments.rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachmentService_DownloadURL(t *testing.T) {
	capture := stubS3(t, nil)
	svc, _, mock, card := newAttachmentFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	up, err := svc.RequestUpload(context.Background(), 1, card.ID, 5, "a.txt")
	require.NoError(t, err)

	down, err := svc.DownloadURL(context.Background(), 1, card.ID, up.AttachmentID)
	require.NoError(t, err)
	assert.Equal(t, "GET", down.Method)
	assert.Equal(t, up.AttachmentID, down.AttachmentID)
	assert.Equal(t, capture.putKey, capture.getKey)
	assert.Equal(t, testNow.Add(PresignExpiry), down.ExpiresAt)

	_, err = svc.DownloadURL(context.Background(), 2, card.ID, up.AttachmentID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.DownloadURL(context.Background(), 1, card.ID, "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.DownloadURL(context.Background(), 1, card.ID, "7f1c2b1e-4a8d-4d7e-9b0a-1c2d3e4f5a6b")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
