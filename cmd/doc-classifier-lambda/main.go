package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/doc-classifier/internal/app"
	"github.com/zombor/doc-classifier/internal/document"
)

func main() {
	// Lambda passes no arguments; configuration comes from DOC_CLASSIFIER_* variables.
	applyLambdaDefaults()

	fs := ff.NewFlagSet("doc-classifier-lambda")
	opts := app.RegisterFlags(fs)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix(app.EnvVarPrefix),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	components, err := opts.Build(context.Background())
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	lambda.Start(document.NewLambdaHandler(components.Service).Handle)
}

// applyLambdaDefaults points local state at /tmp, the only writable path in
// the function. Images go to S3 whenever a bucket is configured.
func applyLambdaDefaults() {
	setDefaultEnv(app.EnvVarPrefix+"_DB", "/tmp/doc-classifier.db")
	setDefaultEnv(app.EnvVarPrefix+"_STORAGE", "/tmp/images")
	if os.Getenv(app.EnvVarPrefix+"_S3_BUCKET") != "" {
		setDefaultEnv(app.EnvVarPrefix+"_STORAGE_BACKEND", "s3")
	}
}

func setDefaultEnv(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		os.Setenv(key, value)
	}
}
