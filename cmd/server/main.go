package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/rpsarena/internal/app/server"
	"github.com/chess-vn/rpsarena/internal/aws/storage"
	"github.com/chess-vn/rpsarena/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logging.Init(cfg.Environment); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history server.RoundHistory
	if cfg.History.TableName != "" {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.History.AwsRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.History.AwsRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			logging.Fatal("unable to load SDK config", zap.Error(err))
		}
		history = storage.NewClient(dynamodb.NewFromConfig(awsCfg), cfg.History.TableName)
		logging.Info("round history enabled", zap.String("table", cfg.History.TableName))
	}

	if err := server.NewServer(cfg, history).Start(ctx); err != nil {
		logging.Fatal("Game server exited: ", zap.Error(err))
	}
	logging.Info("game server stopped")
}
