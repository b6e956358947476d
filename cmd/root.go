package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/michelelt/job-matcher/internal/embedding"
	"github.com/michelelt/job-matcher/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app = "job-matcher"

	defaultStorePath         = "./chroma_db"
	defaultPostsCollection   = "job_posts"
	defaultResumesCollection = "resumes"
)

type Config struct {
	Store     *StoreConfig     `mapstructure:"store"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Ingest    *IngestConfig    `mapstructure:"ingest"`
	Match     *MatchConfig     `mapstructure:"match"`
}

type StoreConfig struct {
	Path              string `mapstructure:"path"`
	PostsCollection   string `mapstructure:"posts-collection"`
	ResumesCollection string `mapstructure:"resumes-collection"`
}

type EmbeddingConfig struct {
	Provider         string `mapstructure:"provider"`
	Model            string `mapstructure:"model"`
	BaseURL          string `mapstructure:"base-url"`
	Dimensions       int    `mapstructure:"dimensions"`
	MaxRetries       int    `mapstructure:"max-retries"`
	GeminiAPIKeyFile string `mapstructure:"gemini-api-key-file"`
}

type IngestConfig struct {
	BatchSize  int    `mapstructure:"batch-size"`
	Overwrite  bool   `mapstructure:"overwrite"`
	PostsCSV   string `mapstructure:"posts-csv"`
	IDColumn   string `mapstructure:"id-column"`
	TextColumn string `mapstructure:"text-column"`
	ResumesDir string `mapstructure:"resumes-dir"`
}

type MatchConfig struct {
	TopResumes int `mapstructure:"top-resumes"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher ingests job postings and résumés into a local vector store and matches them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("embedding.gemini-api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("store-path", "", "directory for the sqlite vector store (default "+defaultStorePath+")")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store-path"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file is optional: every knob has a default or a flag.
	// A file that exists but does not parse is still fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Ingest == nil {
		config.Ingest = &IngestConfig{}
	}
	if config.Match == nil {
		config.Match = &MatchConfig{}
	}

	if config.Store.Path == "" {
		config.Store.Path = defaultStorePath
	}
	if config.Store.PostsCollection == "" {
		config.Store.PostsCollection = defaultPostsCollection
	}
	if config.Store.ResumesCollection == "" {
		config.Store.ResumesCollection = defaultResumesCollection
	}

	return config, nil
}

func openStore(config *Config, logger *zap.Logger) (*store.Store, error) {
	return store.Open(config.Store.Path, logger)
}

func newEmbedder(ctx context.Context, config *Config, logger *zap.Logger) (embedding.Embedder, error) {
	return embedding.New(ctx, embedding.Config{
		Provider:         config.Embedding.Provider,
		Model:            config.Embedding.Model,
		BaseURL:          config.Embedding.BaseURL,
		Dimensions:       config.Embedding.Dimensions,
		MaxRetries:       config.Embedding.MaxRetries,
		GeminiAPIKeyFile: config.Embedding.GeminiAPIKeyFile,
	}, logger)
}
