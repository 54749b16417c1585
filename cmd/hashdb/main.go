package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"hashdb/pkg/concurrency"
	"hashdb/pkg/config"
	"hashdb/pkg/database"
	"hashdb/pkg/repl"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// setupCloseHandler listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database, logger *zap.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("shutting down")
		if err := db.Close(); err != nil {
			logger.Error("close failed", zap.Error(err))
		}
		os.Exit(0)
	}()
}

// startServer listens for connections at the given port and runs the repl
// on each, one client per connection.
func startServer(r *repl.REPL, tm *concurrency.TransactionManager, prompt string, port int, logger *zap.Logger) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		return err
	}
	logger.Info("server started",
		zap.String("db", config.DBName),
		zap.Int("port", listener.Addr().(*net.TCPAddr).Port))
	handleConn := func(c net.Conn) {
		clientId := uuid.New()
		defer c.Close()
		defer tm.Commit(clientId)
		r.Run(clientId, prompt, c, c)
	}
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go handleConn(conn)
	}
}

func main() {
	promptFlag := flag.Bool("c", true, "use prompt?")
	serverFlag := flag.Bool("server", false, "serve the REPL over TCP")
	cfg := config.Load()
	dbFlag := flag.String("db", cfg.DataDir, "DB folder")
	portFlag := flag.Int("p", cfg.Port, "port number")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.Open(*dbFlag)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	setupCloseHandler(db, logger)

	tm := concurrency.NewTransactionManager()
	r := database.DatabaseRepl(db, tm)
	prompt := config.GetPrompt(*promptFlag)
	if *serverFlag {
		if err := startServer(r, tm, prompt, *portFlag, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	} else {
		clientId := uuid.New()
		defer tm.Commit(clientId)
		r.Run(clientId, prompt, nil, nil)
	}
}
