package s3

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

const backendName = "s3"

// Presigner creates presigned GET requests. Satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Provider implements cloud.FolderSource over one bucket. S3 listings are always
// live, so FetchOptions.Force changes nothing.
type Provider struct {
	api     s3.ListObjectsV2APIClient
	presign Presigner
	bucket  string
	root    string
	logger  *logging.Logger
}

// New creates a provider. presign may be nil, in which case files carry no download link.
func New(api s3.ListObjectsV2APIClient, presign Presigner, bucket, rootPrefix string, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Provider{
		api:     api,
		presign: presign,
		bucket:  bucket,
		root:    cloud.NormalizePrefix(rootPrefix),
		logger:  logger,
	}
}

// Backend implements cloud.Named.
func (p *Provider) Backend() string {
	return backendName
}

// ListRootFolders returns the prefixes directly under the root prefix.
func (p *Provider) ListRootFolders(ctx context.Context, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	return p.list(ctx, cloud.ActionListRootFolders, p.root, false)
}

// ListFolderContents returns the prefixes and objects directly under folderID.
func (p *Provider) ListFolderContents(ctx context.Context, folderID string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	prefix := cloud.NormalizePrefix(folderID)
	if prefix == "" {
		return nil, &cloud.FetchError{Action: cloud.ActionListFolderContents, Message: "folder id is required"}
	}
	if !cloud.WithinRoot(prefix, p.root) {
		return nil, &cloud.FetchError{Action: cloud.ActionListFolderContents, Message: "folder " + folderID + " is outside the drive root"}
	}
	return p.list(ctx, cloud.ActionListFolderContents, prefix, true)
}

// SearchFoldersByName returns root folders whose name contains query.
func (p *Provider) SearchFoldersByName(ctx context.Context, query string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	roots, err := p.list(ctx, cloud.ActionSearchFolder, p.root, false)
	if err != nil {
		return nil, err
	}
	return cloud.FilterFoldersByName(roots, query), nil
}

func (p *Provider) list(ctx context.Context, action, prefix string, withFiles bool) ([]models.RemoteFolderEntry, error) {
	start := time.Now()
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Delimiter: aws.String(constants.ObjectStoreDelimiter),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var entries []models.RemoteFolderEntry
	paginator := s3.NewListObjectsV2Paginator(p.api, input)
	for pages := 0; paginator.HasMorePages(); pages++ {
		if pages >= constants.MaxListPages {
			p.logger.Warn().Str("action", action).Str("prefix", prefix).Msg("s3 listing truncated at page limit")
			break
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			err = classify(action, err)
			metrics.RecordDriveRequest(backendName, action, outcomeOf(err), time.Since(start))
			p.logger.Warn().Err(err).Str("action", action).Str("prefix", prefix).Msg("s3 listing failed")
			return nil, err
		}

		for _, cp := range page.CommonPrefixes {
			if key := aws.ToString(cp.Prefix); key != "" {
				entries = append(entries, cloud.PrefixFolder(key))
			}
		}
		if !withFiles {
			continue
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// zero-byte "folder marker" objects
			if key == prefix || strings.HasSuffix(key, constants.ObjectStoreDelimiter) {
				continue
			}
			entries = append(entries, models.NewFile(key, cloud.LastSegment(key), aws.ToInt64(obj.Size), "", p.downloadURL(ctx, key)))
		}
	}

	valid, dropped := cloud.FilterValid(entries, p.logger.Zerolog())
	metrics.RecordDroppedEntries(backendName, action, dropped)
	metrics.RecordDriveRequest(backendName, action, metrics.OutcomeOK, time.Since(start))
	p.logger.Debug().
		Str("action", action).
		Str("prefix", prefix).
		Int("entries", len(valid)).
		Dur("took", time.Since(start)).
		Msg("s3 listing fetched")
	return valid, nil
}

func (p *Provider) downloadURL(ctx context.Context, key string) string {
	if p.presign == nil {
		return ""
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(constants.PresignedURLExpiry))
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("failed to presign download link")
		return ""
	}
	return req.URL
}

// unauthenticatedCodes are S3 error codes meaning the credentials are missing, wrong or expired
var unauthenticatedCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
}

// classify maps an SDK error onto the drive error taxonomy
func classify(action string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && unauthenticatedCodes[apiErr.ErrorCode()] {
		return &unauthenticatedError{action: action, err: err}
	}

	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
		if status == 401 || status == 403 {
			return &unauthenticatedError{action: action, err: err}
		}
	}
	return cloud.NewFetchError(action, status, err)
}

// unauthenticatedError keeps the SDK error for logs while matching cloud.ErrUnauthenticated
type unauthenticatedError struct {
	action string
	err    error
}

func (e *unauthenticatedError) Error() string {
	return e.action + ": " + cloud.ErrUnauthenticated.Error() + ": " + e.err.Error()
}

func (e *unauthenticatedError) Is(target error) bool {
	return target == cloud.ErrUnauthenticated
}

func (e *unauthenticatedError) Unwrap() error {
	return e.err
}

func outcomeOf(err error) string {
	if cloud.IsUnauthenticated(err) {
		return metrics.OutcomeUnauthenticated
	}
	return metrics.OutcomeError
}

var _ cloud.FolderSource = (*Provider)(nil)
