package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DuetFM/cache"
	"DuetFM/config"
	"DuetFM/core/catalog"
	"DuetFM/core/library"
	"DuetFM/core/room"
	"DuetFM/db"
	"DuetFM/logger"
	"DuetFM/repository"
	"DuetFM/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 可选依赖逐个点亮：MySQL、Redis、MinIO 都缺席时服务照样能跑
	var trackRepo repository.TrackRepository
	if cfg.MySQLEnabled() {
		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.DB.Close()
		if err := db.InitDB(); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect GORM: %v", err)
		}
		trackRepo = repository.NewGormTrackRepository(db.GormDB)
		logger.Info("MySQL connected, uploaded tracks will be persisted")
	}

	if cfg.RedisEnabled() {
		if err := db.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, room mirror disabled", logger.ErrorField(err))
		} else {
			defer db.CloseRedis()
			logger.Info("Redis connected, room state mirror enabled")
		}
	}

	if cfg.MinioEnabled() {
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
		logger.Info("MinIO connected, uploads go to object storage")
	}

	ensureDirExists(cfg.UploadDir)
	ensureDirExists(cfg.AudioUploadDir)

	// 组装核心：曲库、注册表、连接中心、事件分发器
	cat := catalog.New(trackRepo)
	if err := cat.LoadUploaded(context.Background()); err != nil {
		logger.Warn("failed to restore uploaded tracks", logger.ErrorField(err))
	}

	hub := room.NewHub()
	registry := room.NewRegistry(hub, cache.NewRoomCache())
	dispatcher := room.NewDispatcher(hub, registry, cat)
	go hub.Run()
	defer hub.Stop()

	// 本地曲库监听：直接放进上传目录的音频文件也会被注册
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if watcher, err := library.NewWatcher(cfg.AudioUploadDir, cat); err != nil {
		logger.Warn("library watcher disabled", logger.ErrorField(err))
	} else {
		go watcher.Run(watchCtx)
	}

	roomHandler := NewRoomHandler(hub, registry, dispatcher)
	apiHandler := NewAPIHandler(cat, cfg)

	router := mux.NewRouter()

	// CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// WebSocket 入口
	router.HandleFunc("/ws", roomHandler.ServeWS)

	// API Endpoints
	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/uploaded-tracks", apiHandler.GetUploadedTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/upload", apiHandler.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{track_id}", apiHandler.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/rooms/{room}/messages", roomHandler.GetRoomMessagesHandler).Methods(http.MethodGet)

	// 上传音频回源：MinIO 代理
	router.PathPrefix("/media/").HandlerFunc(apiHandler.MediaProxyHandler)

	// Static file serving
	uploadsFileServer := http.FileServer(http.Dir(cfg.UploadDir))
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", uploadsFileServer))

	// Frontend UI serving
	uiFileServer := http.FileServer(http.Dir(cfg.WebAppDir))
	router.PathPrefix("/").Handler(uiFileServer)

	httpServer.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		log.Printf("Access the UI at http://localhost%s/", cfg.ListenAddr)
		log.Println("Join rooms via WebSocket at /ws")
		log.Println("Upload tracks via POST to /api/upload")
		log.Println("List tracks via GET from /api/tracks")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Creating directory: %s", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", path, err)
		}
	} else if err != nil {
		log.Fatalf("Failed to check directory %s: %v", path, err)
	}
}
