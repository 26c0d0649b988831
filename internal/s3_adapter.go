package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/dataeditor"
)

// S3API is the subset of the S3 client used by the s3 adapter.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Store keeps the collection as one JSON array object in a bucket.
type s3Store struct {
	client  S3API
	bucket  string
	key     string
	initial []dataeditor.Record
}

func (s *s3Store) load(ctx context.Context) ([]dataeditor.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isMissingObject(err) {
			return dataeditor.CloneRecords(s.initial), nil
		}
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read s3://%s/%s", s.bucket, s.key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read s3://%s/%s", s.bucket, s.key), err)
	}
	records, err := decodeCollection(data)
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("s3://%s/%s does not hold a collection", s.bucket, s.key), err)
	}
	return records, nil
}

func (s *s3Store) save(ctx context.Context, records []dataeditor.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return dataeditor.NewAdapterError("failed to encode collection", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to write s3://%s/%s", s.bucket, s.key), err)
	}
	return nil
}

func isMissingObject(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// S3ObjectKey is the object that holds a model's collection.
func S3ObjectKey(prefix, modelID string) string {
	return prefix + modelID + ".json"
}

// NewS3Adapter returns an adapter that stores the collection of modelID under prefix in bucket.
func NewS3Adapter(client S3API, bucket, prefix, modelID string, initial []dataeditor.Record, options AdapterOptions) dataeditor.Adapter {
	store := &s3Store{
		client:  client,
		bucket:  bucket,
		key:     S3ObjectKey(prefix, modelID),
		initial: dataeditor.CloneRecords(initial),
	}
	return newCollectionAdapter(store, options)
}
