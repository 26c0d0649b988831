package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type exportOptions struct {
	model  string
	output string
	bucket string
	key    string
}

func init() {
	opts := exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the records of a model as a JSON array",
		Long:  "Write the records of a model to stdout, a file, or an S3 object using the storage configured for it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			config.Metrics.Enabled = false
			config.Events.Enabled = false
			return runExport(cmd.Context(), cmd.OutOrStdout(), config, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model id (required)")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.bucket, "s3-bucket", "", "Upload to this S3 bucket instead of writing locally")
	cmd.Flags().StringVar(&opts.key, "s3-key", "", "Object key of the upload (default: <model>.json)")
	cmd.MarkFlagRequired("model")
	RootCmd.AddCommand(cmd)
}

func runExport(ctx context.Context, out io.Writer, config *dataeditor.Config, opts exportOptions) error {
	editor, err := factory.NewEditorWithConfig(ctx, config, factory.Options{})
	if err != nil {
		return err
	}
	defer editor.Close()

	model := editor.Model(opts.model)
	if model == nil {
		return dataeditor.NewUnknownModelError(opts.model)
	}
	entries, err := model.List(ctx)
	if err != nil {
		return err
	}
	records := make([]dataeditor.Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entry.Data)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	data = append(data, '\n')

	switch {
	case opts.bucket != "":
		key := opts.key
		if key == "" {
			key = opts.model + ".json"
		}
		client, err := factory.NewS3Client(ctx, config.Storage.S3)
		if err != nil {
			return err
		}
		if err := uploadExport(ctx, client, opts.bucket, key, data); err != nil {
			return err
		}
		zap.S().Infow("exported model", "model", opts.model, "records", len(records), "bucket", opts.bucket, "key", key)
	case opts.output != "":
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		zap.S().Infow("exported model", "model", opts.model, "records", len(records), "file", opts.output)
	default:
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func uploadExport(ctx context.Context, client manager.UploadAPIClient, bucket, key string, data []byte) error {
	uploader := manager.NewUploader(client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
