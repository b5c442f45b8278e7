package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	dbadapter "github.com/heropets/server/db"
	"github.com/heropets/server/legacy"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-legacy-ids",
		Short: "Move legacy documents into the relational store with sequential IDs",
		Long: `migrate-legacy-ids copies every document that still has a generated
ObjectID out of the legacy MongoDB database, assigns it the next sequential ID,
rewrites the references other documents hold to it and then removes it from
the legacy store.

The command is safe to re-run: an interrupted run resumes where it stopped and
a finished run has nothing left to do.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cmd)
		},
	}
}

func migrate(ctx context.Context, cmd *cobra.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Legacy.MongoURI == "" {
		return errors.New("legacy.mongo_uri is required")
	}

	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Legacy.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Legacy.MongoURI))
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(connectCtx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	src := legacy.NewMongoSource(client.Database(cfg.Legacy.MongoDatabase))
	report, err := legacy.NewMigrator(src, db, sequence.New(db), logger).Run(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
