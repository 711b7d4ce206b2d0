package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"TandemFM/cache"
	"TandemFM/config"
	"TandemFM/core/room"
	"TandemFM/db"
	"TandemFM/logger"
	"TandemFM/repository"
	"TandemFM/storage"

	"github.com/gorilla/mux"
)

// Start wires the dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	gdb, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	redisClient, err := cache.NewClient(cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	media, err := storage.NewMediaStore(cfg)
	if err != nil {
		logger.Fatal("failed to connect to minio", logger.ErrorField(err))
	}

	userRepo := repository.NewGormUserRepository(gdb)
	trackRepo := repository.NewGormTrackRepository(gdb)
	roomRepo := repository.NewGormRoomRepository(gdb)
	chatRepo := repository.NewGormChatRepository(gdb)
	stateRepo := repository.NewGormStateRepository(gdb)
	states := repository.NewStateStore(stateRepo)
	roomCache := cache.NewRoomCache(redisClient)

	hub := room.NewHub(roomCache)
	hub.States = states
	hub.OnActivity = func(roomID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := roomRepo.Touch(ctx, roomID); err != nil {
			logger.Warn("failed to touch room",
				logger.ErrorField(err),
				logger.String("room", roomID))
		}
	}
	go hub.Run()
	defer hub.Stop()

	apiHandler := NewAPIHandler(cfg, userRepo, trackRepo, roomRepo, chatRepo, states, roomCache, media, hub)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// 配对连接相关的API端点
	router.HandleFunc("/api/connections", apiHandler.AuthMiddleware(apiHandler.CreateConnectionHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/connections", apiHandler.AuthMiddleware(apiHandler.ListConnectionsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/connections/{id}/join", apiHandler.AuthMiddleware(apiHandler.JoinConnectionHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/connections/{id}", apiHandler.AuthMiddleware(apiHandler.CloseConnectionHandler)).Methods(http.MethodDelete)

	// 房间状态与聊天记录
	router.HandleFunc("/api/rooms/{id}/state", apiHandler.AuthMiddleware(apiHandler.GetRoomStateHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{id}/messages", apiHandler.AuthMiddleware(apiHandler.GetMessagesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{id}/messages", apiHandler.AuthMiddleware(apiHandler.ClearMessagesHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/rooms/{id}/tracks", apiHandler.AuthMiddleware(apiHandler.GetPartnerTracksHandler)).Methods(http.MethodGet)

	// 曲目相关的API端点
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/favorite", apiHandler.AuthMiddleware(apiHandler.SetFavoriteHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/upload", apiHandler.AuthMiddleware(apiHandler.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/upload/cover", apiHandler.AuthMiddleware(apiHandler.UploadCoverHandler)).Methods(http.MethodPost)

	// 房间实时通道
	router.HandleFunc("/ws/rooms/{id}", apiHandler.RoomWSHandler).Methods(http.MethodGet)

	// 媒体文件通过预签名URL从对象存储下发
	router.PathPrefix("/media/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		object := strings.TrimPrefix(r.URL.Path, "/media/")
		url, err := media.PresignedGet(r.Context(), object, time.Hour)
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
