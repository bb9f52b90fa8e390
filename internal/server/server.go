package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/notecache/internal/config"
	"github.com/emrgen/notecache/internal/jobs"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/emrgen/notecache/internal/service"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Server exposes the repository over HTTP/JSON.
type Server struct {
	repo *service.Repository
}

func NewServer(repo *service.Repository) *Server {
	return &Server{repo: repo}
}

// Handler returns the routes wrapped in cors and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notes", s.createNote)
	mux.HandleFunc("GET /v1/notes/{note}", s.getNote)
	mux.HandleFunc("GET /v1/notes/{note}/pages", s.listPages)
	mux.HandleFunc("POST /v1/notes/{note}/pages", s.addPage)
	mux.HandleFunc("GET /v1/notes/{note}/pages/{page}/text", s.processedText)
	mux.HandleFunc("DELETE /v1/notes/{note}/pages/{page}/segments/{index}", s.deleteSegment)
	mux.HandleFunc("GET /v1/notes/{note}/flashcards", s.listFlashcards)
	mux.HandleFunc("POST /v1/notes/{note}/flashcards", s.addFlashcard)
	mux.HandleFunc("PUT /v1/flashcards/{card}", s.updateFlashcard)
	mux.HandleFunc("DELETE /v1/flashcards/{card}", s.deleteFlashcard)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return c.Handler(RequestTimeInterceptor(mux))
}

// Start runs the HTTP server and the background jobs of app until SIGTERM or
// SIGINT, then shuts both down.
func Start(app *config.App) error {
	if err := app.Store.Migrate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	executor := jobs.NewTaskExecutor(app.Jobs()...)
	if err := executor.Start(ctx); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", app.Config.Server.Addr)
	if err != nil {
		return err
	}

	restServer := &http.Server{
		Handler:           NewServer(app.Repository).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// make sure to wait for the server and event consumer to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting http server on: ", app.Config.Server.Addr)
		if err := restServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("error starting http server: %v", err)
		}
		logrus.Infof("http server stopped")
	}()

	if ch, ok := app.Publisher.(*queue.ChannelPublisher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Drain(ctx, ch.Events(), func(e queue.Event) {
				logrus.WithFields(logrus.Fields{"kind": e.Kind, "note_id": e.NoteID, "count": e.Count}).Debug("event")
			})
		}()
	}

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error stopping http server: %v", err)
	}

	executor.Stop()
	cancel()
	wg.Wait()

	return nil
}
