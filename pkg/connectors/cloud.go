package connectors

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

func registerCloudStorage() {
	register(&Kind{
		ID: "s3", Name: "AWS S3", Description: "Amazon S3 bucket",
		Aliases:  []string{"aws_s3"},
		Category: CategoryCloudStorage,
		Required: []string{"bucket"},
		Optional: map[string]any{"aws_access_key_id": nil, "aws_secret_access_key": nil, "region": "us-east-1"},
		label:    "S3",
		build:    newS3Source,
	})
	register(&Kind{
		ID: "gcs", Name: "Google Cloud Storage", Description: "Google Cloud Storage bucket",
		Aliases:  []string{"google_cloud_storage"},
		Category: CategoryCloudStorage,
		Required: []string{"bucket"},
		Optional: map[string]any{"project_id": nil, "credentials_path": nil},
		label:    "GCS",
		build:    newGCSSource,
	})
	register(&Kind{
		ID: "azure_blob", Name: "Azure Blob Storage", Description: "Azure Blob Storage container",
		Aliases:  []string{"azure"},
		Category: CategoryCloudStorage,
		Required: []string{"container"},
		Optional: map[string]any{"connection_string": nil, "account_url": nil},
		label:    "Azure Blob",
		build:    newAzureSource,
	})
}

// objectSource reads one object of a bucket, in the format told by its key.
type objectSource struct {
	key  string
	opts frame.CSVOptions

	connect func(ctx context.Context) error
	stat    func(ctx context.Context) (map[string]any, error)
	fetch   func(ctx context.Context) (io.ReadCloser, error)
}

func (o *objectSource) open(ctx context.Context) error {
	return o.connect(ctx)
}

func (o *objectSource) close() error { return nil }

func (o *objectSource) probe(ctx context.Context) (map[string]any, error) {
	return o.stat(ctx)
}

func (o *objectSource) read(ctx context.Context, limit int) (*frame.Frame, error) {
	body, err := o.fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return readByExtension(body, o.key, o.opts, limit)
}

func newS3Source(cfg Config) (source, error) {
	bucket := paramString(cfg.Params, "bucket", "")
	key := cfg.QueryOrPath
	region := paramString(cfg.Params, "region", "us-east-1")
	accessKey := paramString(cfg.Params, "aws_access_key_id", "")
	secretKey := paramString(cfg.Params, "aws_secret_access_key", "")

	var client *s3.Client
	o := &objectSource{key: key, opts: csvOptions(cfg.Params)}
	o.connect = func(ctx context.Context) error {
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
		if accessKey != "" && secretKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
			))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return xe.Wrap(err)
		}
		client = s3.NewFromConfig(c)
		return nil
	}
	o.stat = func(ctx context.Context) (map[string]any, error) {
		head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, xe.Wrap(err)
		}
		return map[string]any{
			"bucket": bucket,
			"key":    key,
			"size":   aws.ToInt64(head.ContentLength),
		}, nil
	}
	o.fetch = func(ctx context.Context) (io.ReadCloser, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, xe.Wrap(err)
		}
		return out.Body, nil
	}
	return o, nil
}

// googleOptions authenticates with a service account file when credentials_path is given,
// and with application default credentials otherwise.
func googleOptions(ctx context.Context, params map[string]any, scope string) ([]option.ClientOption, error) {
	var ts oauth2.TokenSource
	if p := paramString(params, "credentials_path", ""); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		creds, err := google.CredentialsFromJSON(ctx, b, scope)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ts = creds.TokenSource
	} else {
		dts, err := google.DefaultTokenSource(ctx, scope)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ts = dts
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

func newGCSSource(cfg Config) (source, error) {
	bucket := paramString(cfg.Params, "bucket", "")
	blob := cfg.QueryOrPath

	var svc *storage.Service
	o := &objectSource{key: blob, opts: csvOptions(cfg.Params)}
	o.connect = func(ctx context.Context) error {
		opts, err := googleOptions(ctx, cfg.Params, storage.DevstorageReadOnlyScope)
		if err != nil {
			return err
		}
		if svc, err = storage.NewService(ctx, opts...); err != nil {
			return xe.Wrap(err)
		}
		return nil
	}
	o.stat = func(ctx context.Context) (map[string]any, error) {
		obj, err := svc.Objects.Get(bucket, blob).Context(ctx).Do()
		if gerr := new(googleapi.Error); errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, xe.Errorf("Blob not found: %s", blob)
		}
		if err != nil {
			return nil, xe.Wrap(err)
		}
		return map[string]any{"bucket": bucket, "blob": blob, "size": obj.Size}, nil
	}
	o.fetch = func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := svc.Objects.Get(bucket, blob).Context(ctx).Download()
		if err != nil {
			return nil, xe.Wrap(err)
		}
		return resp.Body, nil
	}
	return o, nil
}

func newAzureSource(cfg Config) (source, error) {
	container := paramString(cfg.Params, "container", "")
	blob := cfg.QueryOrPath
	connStr := paramString(cfg.Params, "connection_string", "")
	accountURL := paramString(cfg.Params, "account_url", "")
	if connStr == "" && accountURL == "" {
		return nil, xe.New("either connection_string or account_url is required")
	}

	var client *azblob.Client
	o := &objectSource{key: blob, opts: csvOptions(cfg.Params)}
	o.connect = func(context.Context) error {
		var err error
		if connStr != "" {
			client, err = azblob.NewClientFromConnectionString(connStr, nil)
		} else {
			// account_url is expected to carry a SAS token.
			client, err = azblob.NewClientWithNoCredential(accountURL, nil)
		}
		return xe.Wrap(err)
	}
	o.stat = func(ctx context.Context) (map[string]any, error) {
		props, err := client.ServiceClient().
			NewContainerClient(container).
			NewBlobClient(blob).
			GetProperties(ctx, nil)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		var size int64
		if props.ContentLength != nil {
			size = *props.ContentLength
		}
		return map[string]any{"container": container, "blob": blob, "size": size}, nil
	}
	o.fetch = func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := client.DownloadStream(ctx, container, blob, nil)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		return resp.Body, nil
	}
	return o, nil
}
