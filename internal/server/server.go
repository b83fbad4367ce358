// Package server is the composition root: it wires the store, services,
// handlers, and middleware into one router and owns the HTTP lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/avatar"
	"github.com/sakif/mychat/internal/config"
	"github.com/sakif/mychat/internal/handler"
	"github.com/sakif/mychat/internal/middleware"
	"github.com/sakif/mychat/internal/model"
	sqliteRepo "github.com/sakif/mychat/internal/repository/sqlite"
	"github.com/sakif/mychat/internal/service"
)

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router  *chi.Mux
	cfg     config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	avatars *avatar.Store
}

// New assembles the whole dependency chain: store, avatar directory,
// services, handlers, routes. It also seeds the administrator account so a
// fresh database is usable immediately.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	avatars, err := avatar.NewStore(cfg.AvatarDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing avatar directory: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring tokens: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		db:      db,
		avatars: avatars,
	}

	passwords := auth.NewPasswordService()
	users := service.NewUserService(db.Users(), avatars, passwords, logger)
	login := service.NewLoginService(db.Users(), passwords, tokens, service.LoginConfig{
		MaxFailedAccess: cfg.MaxFailedAccess,
		LockoutDuration: cfg.LockoutDuration,
	}, logger)
	chat := service.NewChatService(db.Messages(), db.Users(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	s.setupRoutes(tokens, users, login, chat)

	return s, nil
}

func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	users *service.UserService,
	login *service.LoginService,
	chat *service.ChatService,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(users, login, s.logger)
	profileHandler := handler.NewProfileHandler(users, s.logger)
	adminHandler := handler.NewAdminHandler(users, chat, s.logger)
	chatHandler := handler.NewChatHandler(chat, s.logger)

	// Uploaded avatars are public static files. StripPrefix maps
	// GET /avatars/xyz.png to {AvatarDir}/xyz.png.
	fileServer := http.FileServer(http.Dir(s.avatars.Dir()))
	s.router.Handle(avatar.PublicPrefix+"*", http.StripPrefix(avatar.PublicPrefix, fileServer))

	// Anonymous surface.
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/logout", authHandler.HandleLogout)

	// Signed-in surface.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/profile", profileHandler.HandleGet)
		r.Post("/profile", profileHandler.HandleUpdate)

		r.Get("/chat", chatHandler.HandleFeed)
		r.Get("/chat/update", chatHandler.HandleUpdates)
		r.Post("/chat/send", chatHandler.HandleSend)
	})

	// Admin surface: session plus the admin role.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Use(auth.RequireRole(model.RoleAdmin))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", adminHandler.HandleList)
			r.Post("/create", adminHandler.HandleCreate)
			r.Get("/edit/{id}", adminHandler.HandleGet)
			r.Post("/edit/{id}", adminHandler.HandleUpdate)
			r.Post("/block/{id}", adminHandler.HandleBlock)
			r.Post("/unblock/{id}", adminHandler.HandleUnblock)
			r.Post("/delete/{id}", adminHandler.HandleDelete)
			r.Post("/messages/{id}/delete", adminHandler.HandleDeleteMessage)
		})
	})
}

// Router exposes the assembled handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests, close the database
// so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
