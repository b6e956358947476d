package cmd

import (
	"context"
	"log"

	"github.com/michelelt/job-matcher/internal/extract"
	"github.com/michelelt/job-matcher/internal/ingest"
	"github.com/michelelt/job-matcher/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed job postings and résumés into the local vector store",
	Run: func(_ *cobra.Command, _ []string) {
		runIngest()
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("posts-csv", "", "CSV file with job postings to ingest")
	ingestCmd.Flags().String("resumes-dir", "", "directory tree with résumé files to ingest")
	ingestCmd.Flags().String("id-column", "", "unique-id column of the postings CSV (default "+ingest.DefaultIDColumn+")")
	ingestCmd.Flags().String("text-column", "", "description column of the postings CSV (default "+ingest.DefaultTextColumn+")")
	ingestCmd.Flags().Int("batch-size", 0, "records per store batch (default 1000)")
	ingestCmd.Flags().Bool("overwrite", false, "rebuild target collections from scratch")

	viper.BindPFlag("ingest.posts-csv", ingestCmd.Flags().Lookup("posts-csv"))
	viper.BindPFlag("ingest.resumes-dir", ingestCmd.Flags().Lookup("resumes-dir"))
	viper.BindPFlag("ingest.id-column", ingestCmd.Flags().Lookup("id-column"))
	viper.BindPFlag("ingest.text-column", ingestCmd.Flags().Lookup("text-column"))
	viper.BindPFlag("ingest.batch-size", ingestCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("ingest.overwrite", ingestCmd.Flags().Lookup("overwrite"))
}

func runIngest() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config.Ingest.PostsCSV == "" && config.Ingest.ResumesDir == "" {
		logger.Fatal("nothing to ingest",
			zap.String("hint", "pass --posts-csv and/or --resumes-dir"),
		)
	}

	st, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening the vector store", zap.Error(err))
	}
	defer st.Close()

	embedder, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the embedder", zap.Error(err))
	}

	pipeline := ingest.New(st, embedder, extract.New(extract.NewTesseractEngine()), config.Ingest.BatchSize, logger)

	if config.Ingest.PostsCSV != "" {
		logger.Info("ingesting job postings", zap.String("csv", config.Ingest.PostsCSV))

		if _, err := pipeline.IngestJobPosts(ctx, ingest.JobPostsOptions{
			CSVPath:    config.Ingest.PostsCSV,
			Collection: config.Store.PostsCollection,
			IDColumn:   config.Ingest.IDColumn,
			TextColumn: config.Ingest.TextColumn,
			Overwrite:  config.Ingest.Overwrite,
		}); err != nil {
			logger.Fatal("ingesting job postings", zap.Error(err))
		}
	}

	if config.Ingest.ResumesDir != "" {
		logger.Info("ingesting résumés", zap.String("dir", config.Ingest.ResumesDir))

		if _, err := pipeline.IngestResumes(ctx, ingest.ResumesOptions{
			RootDir:    config.Ingest.ResumesDir,
			Collection: config.Store.ResumesCollection,
			Overwrite:  config.Ingest.Overwrite,
		}); err != nil {
			logger.Fatal("ingesting résumés", zap.Error(err))
		}
	}
}
