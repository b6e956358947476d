package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/michelelt/job-matcher/internal/extract"
	"github.com/michelelt/job-matcher/internal/logger"
	"github.com/michelelt/job-matcher/internal/matcher"
	"github.com/michelelt/job-matcher/internal/preview"
	"github.com/michelelt/job-matcher/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptSearchAgain = "Search again"
	PromptExit        = "Exit"

	descriptionPreviewLen = 400
)

var errExit = errors.New("exit requested")

var continuePrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptSearchAgain, PromptExit},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a job description against stored postings and résumés",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("query", "q", "", "run a single match for this description and exit")
	matchCmd.Flags().Int("top-resumes", 0, "how many résumés to rank per match (default 5)")

	viper.BindPFlag("match.top-resumes", matchCmd.Flags().Lookup("top-resumes"))
}

// runMatch is the interactive entrypoint: prompt for a description, show
// the nearest posting and its ranked résumés, repeat until exit.
func runMatch(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	st, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("opening the vector store", zap.Error(err))
	}
	defer st.Close()

	warnIfEmpty(ctx, st, config, logger)

	embedder, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the embedder", zap.Error(err))
	}

	service := matcher.New(embedder, st,
		config.Store.PostsCollection, config.Store.ResumesCollection,
		config.Match.TopResumes, logger,
	)
	renderer := preview.New(extract.New(extract.NewTesseractEngine()), 0, logger)

	if query := cmd.Flag("query").Value.String(); query != "" {
		if err := matchOnce(ctx, service, renderer, query); err != nil {
			logger.Fatal("matching", zap.Error(err))
		}
		return
	}

	descriptionPrompt := promptui.Prompt{
		Label: "Job description",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("description must not be empty")
			}
			return nil
		},
	}

	for {
		description, err := descriptionPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		matchAndReport(ctx, service, renderer, logger, description)

		_, action, err := continuePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if action == PromptExit {
			return
		}
	}
}

// warnIfEmpty tells the user up front when there is nothing to match
// against, instead of letting every query come back empty.
func warnIfEmpty(ctx context.Context, st *store.Store, config *Config, logger *zap.Logger) {
	for _, collection := range []string{config.Store.PostsCollection, config.Store.ResumesCollection} {
		count, err := st.Count(ctx, collection)
		if err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
			logger.Warn("can not count collection", zap.String("collection", collection), zap.Error(err))
			continue
		}

		if count == 0 {
			logger.Warn("collection is empty, run the ingest command first",
				zap.String("collection", collection),
			)
		}
	}
}

// matchAndReport runs one interactive query. A failed query ends the
// query, not the session: the error is shown and the prompt comes back.
func matchAndReport(ctx context.Context, service *matcher.Service, renderer *preview.Renderer, logger *zap.Logger, description string) {
	if err := matchOnce(ctx, service, renderer, description); err != nil {
		logger.Error("matching failed, try again", zap.Error(err))
	}
}

func matchOnce(ctx context.Context, service *matcher.Service, renderer *preview.Renderer, description string) error {
	match, err := service.Match(ctx, description)
	if err != nil {
		if errors.Is(err, matcher.ErrEmptyDescription) {
			return nil
		}
		return err
	}

	if match.Posting == nil {
		fmt.Println("no job postings stored, nothing to match against")
		return nil
	}

	fmt.Printf("\nClosest job posting: %s (distance %.2f)\n", match.Posting.Title, match.Posting.Distance)
	fmt.Printf("%s\n", logger.TruncateForLog(match.Posting.Description, descriptionPreviewLen))

	if len(match.Resumes) == 0 {
		fmt.Println("\nno résumés stored for this posting")
		return nil
	}

	fmt.Printf("\nTop %d résumés:\n", len(match.Resumes))

	for _, r := range match.Resumes {
		fmt.Printf("\n%d. %s (distance %.2f)\n   %s\n", r.Rank, r.Name, r.Distance, r.Source)

		rendered, err := renderer.Render(ctx, r.Source)
		if err != nil {
			fmt.Printf("   preview unavailable: %v\n", err)
			continue
		}

		fmt.Printf("   %s\n", strings.ReplaceAll(rendered, "\n", "\n   "))
	}

	return nil
}
