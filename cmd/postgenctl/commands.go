package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"postgen/internal/adapter/repo"
	"postgen/internal/db"
	"postgen/internal/infra"
	"postgen/internal/infra/credentials"
	"postgen/internal/middleware"
	genaiprovider "postgen/internal/providers/genai"
	"postgen/internal/retrieval"
	"postgen/internal/sqlaudit"
	"postgen/internal/vectorstore"
)

func buildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "postgenctl",
		Short:         "Operational tasks for the postgen service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		buildMigrateCommand(),
		buildIndexCommand(),
		buildSetGeminiKeyCommand(),
		buildTokenCommand(),
		buildLintSQLCommand(),
	)
	return root
}

func buildMigrateCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				migrations, err := db.Migrations()
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintln(cmd.OutOrStdout(), m.Name)
				}
				return nil
			}
			dbURL, err := requireEnv("DATABASE_URL")
			if err != nil {
				return err
			}
			conn, err := db.Open(dbURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			applied, err := db.Migrate(ctx, conn)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list embedded migrations without connecting")
	return cmd
}

func buildIndexCommand() *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed onboarding profiles into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(users) == 0 {
				return errors.New("at least one --user is required")
			}
			ctx := cmd.Context()
			logger := cliLogger("index")

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			sqlRunner := infra.NewSQLRunner(pool, logger)

			apiKey, err := credentials.NewStore(sqlRunner).ResolveGeminiAPIKey(ctx, os.Getenv("GEMINI_API_KEY"))
			if err != nil {
				return err
			}
			client, err := genaiprovider.New(ctx, genaiprovider.Options{
				APIKey:         apiKey,
				EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			store, err := vectorstore.Open(envOr("VECTOR_DB_PATH", "./data/vectors.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			ix := retrieval.Indexer{
				Profiles: repo.NewProfileRepository(sqlRunner),
				Embedder: client.Documents(),
				Store:    store,
			}
			var failed int
			for _, user := range users {
				doc, err := ix.IndexProfile(ctx, user)
				if err != nil {
					failed++
					logger.Error().Err(err).Str("user_id", user).Msg("index failed")
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d dims)\n", doc.ID, len(doc.Vector))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profiles failed", failed, len(users))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&users, "user", nil, "user id to index (repeatable)")
	return cmd
}

func buildSetGeminiKeyCommand() *cobra.Command {
	var (
		key    string
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "set-gemini-key",
		Short: "Store the Gemini API key used when GEMINI_API_KEY is unset",
		RunE: func(cmd *cobra.Command, args []string) error {
			key = strings.TrimSpace(key)
			if key == "" && !remove {
				key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
			}
			if key == "" && !remove {
				return errors.New("GEMINI API key is required via --key or environment")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := credentials.NewStore(infra.NewSQLRunner(pool, cliLogger("set-gemini-key")))
			if remove {
				removed, err := store.DeleteGeminiAPIKey(ctx)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), "no stored GEMINI API key")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "GEMINI API key removed")
				return nil
			}
			fp, err := store.SetGeminiAPIKey(ctx, key, "postgenctl")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GEMINI API key %s stored\n", fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (falls back to GEMINI_API_KEY)")
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the stored key")
	return cmd
}

func buildTokenCommand() *cobra.Command {
	var (
		user   string
		style  string
		locale string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return errors.New("--user is required")
			}
			secret, err := requireEnv("JWT_SECRET")
			if err != nil {
				return err
			}
			tok, err := middleware.SignJWT(secret, middleware.TokenClaims{
				Sub:      user,
				Style:    style,
				Locale:   locale,
				Exp:      time.Now().Add(ttl).Unix(),
				Issuer:   "postgenctl",
				Audience: envOr("JWT_AUDIENCE", "authenticated"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject (user id)")
	cmd.Flags().StringVar(&style, "style", "", "optional writing style claim")
	cmd.Flags().StringVar(&locale, "locale", "", "optional locale claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func buildLintSQLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint-sql [paths...]",
		Short: "Check that SQL constants carry unique --sql <uuid> markers",
		RunE: func(cmd *cobra.Command, args []string) error {
			violations, err := sqlaudit.Lint(args...)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s:%d %s (%s)\n", v.File, v.Line, v.Message, v.Name)
			}
			return fmt.Errorf("%d SQL audit marker violations", len(violations))
		},
	}
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return pool, nil
}

func cliLogger(cmd string) zerolog.Logger {
	return infra.NewLogger("cli").With().Str("cmd", cmd).Logger()
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
