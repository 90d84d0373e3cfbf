package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antibyte/cpcrun/pkg/auth"
	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/console"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/server"
	"github.com/antibyte/cpcrun/pkg/session"
	"github.com/antibyte/cpcrun/pkg/terminal"
	"github.com/antibyte/cpcrun/pkg/virtualfs"
)

const idleSessionTimeout = 30 * time.Minute

func main() {
	configPath := flag.String("config", "settings.cfg", "configuration file")
	runFile := flag.String("run", "", "run a BASIC file in this terminal instead of serving")
	flag.Bool("serve", true, "serve the websocket front end (default)")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password for [Auth] access_password_hash")
	flag.Parse()

	// Initialize configuration (before all other initializations)
	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", *configPath)

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs, db, err := openLibrary()
	if err != nil {
		logger.Fatal(logger.AreaStorage, "Database initialization failed: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	if *runFile != "" {
		os.Exit(runConsole(ctx, *runFile, fs))
	}
	if err := serve(ctx, fs); err != nil {
		logger.Fatal(logger.AreaGeneral, "server failed: %v", err)
	}
}

// openLibrary opens the program library when [Storage] enable_file_access
// is set; otherwise programs cannot be saved or loaded.
func openLibrary() (*virtualfs.VFS, *sql.DB, error) {
	if !configuration.GetBool("Storage", "enable_file_access", false) {
		logger.Info(logger.AreaStorage, "file access disabled")
		return nil, nil, nil
	}
	db, err := virtualfs.InitDB(configuration.GetString("Storage", "database", "programs.db"))
	if err != nil {
		return nil, nil, err
	}
	if err := virtualfs.CreateTables(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info(logger.AreaStorage, "Database tables successfully initialized")
	return virtualfs.New(db), db, nil
}

func runConsole(ctx context.Context, path string, fs *virtualfs.VFS) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts := session.OptionsFromConfig()
	opts.Owner = "console"
	opts.FS = fs

	err = console.Run(ctx, os.Stdin, os.Stdout, string(source), opts)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, console.ErrInterrupted), errors.Is(err, context.Canceled):
		fmt.Println()
		return 130
	default:
		fmt.Fprintf(os.Stderr, "\r\n%v\r\n", err)
		return 1
	}
}

func serve(ctx context.Context, fs *virtualfs.VFS) error {
	sessions := session.NewManager(session.LimitsFromConfig())
	defer sessions.CloseAll()
	go closeIdleSessions(ctx, sessions)

	handler := terminal.NewHandler(sessions, fs)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", auth.HandleCreateSession)
	mux.HandleFunc("/api/logout", auth.HandleLogout)
	mux.HandleFunc("/ws", auth.RequireToken(handler.HandleWebSocket))
	mux.Handle("/js/", http.StripPrefix("/js/", http.FileServer(http.Dir("js"))))
	mux.Handle("/css/", http.StripPrefix("/css/", http.FileServer(http.Dir("css"))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, "index.html")
	})

	srv, err := server.New(server.TLSConfigFromConfig(), mux)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func closeIdleSessions(ctx context.Context, sessions *session.Manager) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CloseIdle(idleSessionTimeout); n > 0 {
				logger.Info(logger.AreaSession, "closed %d idle sessions", n)
			}
		}
	}
}
