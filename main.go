package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folioterm/folioterm/pkg/auth"
	"github.com/folioterm/folioterm/pkg/configuration"
	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/store"
	"github.com/folioterm/folioterm/pkg/terminal"
	"github.com/folioterm/folioterm/pkg/tls"
)

func main() {
	// Configuration first, everything else reads from it.
	configPath := "settings.cfg"
	if err := configuration.Initialize(configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		return
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Close()
	logger.ConfigInfo("folioterm started - configuration loaded from: %s", configPath)

	// Database.
	dbPath := configuration.GetString("Database", "path", "folioterm.db")
	db, err := store.InitDB(dbPath)
	if err != nil {
		logger.Fatal(logger.AreaDatabase, "database initialization failed: %v", err)
	}
	defer db.Close()

	if err := store.CreateTables(db); err != nil {
		logger.Fatal(logger.AreaDatabase, "table creation failed: %v", err)
	}
	if configuration.GetBool("Database", "seed_demo_commands", true) {
		if err := store.SeedDemoCommands(context.Background(), db); err != nil {
			logger.Error(logger.AreaDatabase, "seeding demo commands failed: %v", err)
		}
	}

	// Terminal service.
	commands := store.NewCommandStore(db)
	verifier := auth.NewVerifier(store.NewUserStore(db))
	terminalServer := terminal.NewServer(commands, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", terminalServer.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	staticDir := configuration.GetString("Server", "static_dir", "web")
	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	tlsManager, err := tls.NewManager()
	if err != nil {
		logger.Fatal(logger.AreaSecurity, "TLS initialization failed: %v", err)
	}

	listenAddr := configuration.GetString("Server", "listen_addr", ":8080")
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Serve until interrupted, then drain connections.
	errCh := make(chan error, 1)
	if tlsManager.Enabled() {
		server.Addr = tlsManager.HTTPSAddr()
		server.TLSConfig = tlsManager.TLSConfig()
		certFile, keyFile := tlsManager.CertFiles()

		// ACME challenges and the HTTPS redirect still need a plain listener.
		if tlsManager.NeedsHTTPServer() {
			httpServer := &http.Server{
				Addr:              listenAddr,
				Handler:           tlsManager.HTTPHandler(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.Info(logger.AreaGeneral, "http listener on %s", listenAddr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error(logger.AreaGeneral, "http listener failed: %v", err)
				}
			}()
		}

		go func() {
			logger.Info(logger.AreaGeneral, "listening on %s (TLS)", server.Addr)
			fmt.Printf("folioterm listening on %s (TLS)\n", server.Addr)
			errCh <- server.ListenAndServeTLS(certFile, keyFile)
		}()
	} else {
		go func() {
			logger.Info(logger.AreaGeneral, "listening on %s", listenAddr)
			fmt.Printf("folioterm listening on %s\n", listenAddr)
			errCh <- server.ListenAndServe()
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal(logger.AreaGeneral, "server failed: %v", err)
		}
	case <-stop:
		logger.Info(logger.AreaGeneral, "shutdown requested")
		timeout := configuration.GetDuration("Server", "shutdown_timeout", 10*time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(logger.AreaGeneral, "shutdown error: %v", err)
		}
	}
}
