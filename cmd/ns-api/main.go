package main

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/query"
	"FlowSleuth/internal/stitch"
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	policy, err := stitch.ParsePolicy(cfg.Stitch.MissingKeyPolicy)
	if err != nil {
		log.Fatalf("Invalid stitch configuration: %v", err)
	}

	// Session lookups need the first enabled ClickHouse writer
	var querier query.Querier
	for _, writerDef := range cfg.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			querier, err = query.NewClickHouseQuerier(writerDef.ClickHouse)
			if err != nil {
				log.Fatalf("Failed to create querier: %v", err)
			}
			break
		}
	}
	if querier == nil {
		log.Println("No enabled ClickHouse writer found in config, session lookups are disabled.")
	}

	apiHandler := &APIHandler{policy: policy, querier: querier}
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: newRouter(apiHandler),
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// gRPC health service
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if cfg.API.GRPCListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.API.GRPCListenAddr)
		if err != nil {
			log.Fatalf("Could not listen on %s: %v", cfg.API.GRPCListenAddr, err)
		}
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			log.Printf("gRPC health service starting on %s", cfg.API.GRPCListenAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	log.Println("API server exited.")
}
