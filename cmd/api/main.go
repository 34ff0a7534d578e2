package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kwazak/umnfestival2026-sub001/internal/client"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/handler"
	"github.com/Kwazak/umnfestival2026-sub001/internal/logger"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"
	"github.com/Kwazak/umnfestival2026-sub001/internal/server"
	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: "festival-checkout",
		Env:     cfg.Environment.Name,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	db := client.InitSqliteClient(cfg.DatabaseURL)
	gatewayClient := client.NewGatewayClient(&cfg.Gateway)

	orderRepo := repository.NewOrderRepository(db)
	codeRepo := repository.NewCodeRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	codeService := service.NewCodeService(codeRepo)
	identityService := service.NewIdentityService(accountRepo, orderRepo, &cfg.Session)
	orderService := service.NewOrderService(
		db,
		orderRepo,
		codeRepo,
		ticketRepo,
		accountRepo,
		codeService,
		gatewayClient,
		cfg.Checkout,
		log,
	)
	reconciler := service.NewReconciler(orderService, gatewayClient, &cfg.Gateway, log)
	sweeper := service.NewExpirySweeper(
		orderRepo,
		orderService,
		reconciler,
		cfg.Checkout.PaymentWindow,
		cfg.Checkout.SweepInterval,
		log,
	)

	checkoutHandler := handler.NewCheckoutHandler(identityService, codeService)
	orderHandler := handler.NewOrderHandler(orderService, reconciler)
	paymentHandler := handler.NewPaymentHandler(reconciler, gatewayClient, webhookEventRepo, log)

	srv := server.NewServer(checkoutHandler, orderHandler, paymentHandler, identityService)
	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", "addr", serverAddr)
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("signal received, starting graceful shutdown")
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "err", err)
		os.Exit(1)
	}
}
