package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pathprep/pathprep/config"
	"github.com/pathprep/pathprep/internal/api/handlers"
	"github.com/pathprep/pathprep/internal/api/middleware"
	"github.com/pathprep/pathprep/internal/api/routes"
	"github.com/pathprep/pathprep/internal/cache"
	"github.com/pathprep/pathprep/internal/interview"
	"github.com/pathprep/pathprep/internal/logger"
	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/llm"
	"github.com/pathprep/pathprep/internal/providers/stt"
	"github.com/pathprep/pathprep/internal/providers/tts"
	mongorepo "github.com/pathprep/pathprep/internal/repositories/mongo"
	pgrepo "github.com/pathprep/pathprep/internal/repositories/postgres"
	"github.com/pathprep/pathprep/internal/services"
	"github.com/pathprep/pathprep/internal/storage"
	"github.com/pathprep/pathprep/internal/voice"
	"github.com/pathprep/pathprep/internal/workers"
)

func main() {
	_ = godotenv.Load()
	l := logger.New()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	l.Info("MongoDB connected")
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	l.Info("PostgreSQL connected")
	if err := config.PostgresDB.AutoMigrate(&models.ConversationLog{}, &models.FeedbackResult{}); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	// Providers
	recognizer, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("speech init error: %v", err)
	}
	defer recognizer.Close()

	synth, err := tts.NewGoogleTTS(ctx, os.Getenv("TTS_LANGUAGE"))
	if err != nil {
		log.Fatalf("tts init error: %v", err)
	}
	defer synth.Close()

	completions, err := newLLM(ctx)
	if err != nil {
		log.Fatalf("llm init error: %v", err)
	}
	defer completions.Close()

	// Repositories and services
	db := config.MongoClient.Database(config.MongoDBName())
	sessionRepo := mongorepo.NewSessionRepo(db)
	convoRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	feedbackRepo := pgrepo.NewFeedbackRepo(config.PostgresDB)

	sessionSvc := services.NewSessionService(sessionRepo, config.RedisClient)
	convoSvc := services.NewConversationService(convoRepo)
	redisCache := cache.NewRedisCache(config.RedisClient)

	// Feedback worker
	pool := &workers.FeedbackWorkerPool{
		Redis:    config.RedisClient,
		Sessions: sessionRepo,
		Feedback: feedbackRepo,
		LLM:      completions,
		Logger:   l,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("feedback worker error: %v", err)
	}

	// HTTP + WS
	live := handlers.NewLiveSessions()
	factory := func() *interview.Service {
		return interview.NewService(completions, redisCache, l, interview.Config{})
	}

	// Answer recordings are optional; enabled when a bucket is configured.
	var recordings storage.RecordingStore
	if bucket := os.Getenv("GCS_RECORDINGS_BUCKET"); bucket != "" {
		store, err := storage.NewGCSRecordingStore(ctx, bucket)
		if err != nil {
			log.Fatalf("recording store init error: %v", err)
		}
		defer store.Close()
		recordings = store
	}

	sessionHandler := handlers.NewSessionHandler(sessionSvc, factory, live)
	convoHandler := handlers.NewConversationHandler(sessionSvc, convoSvc)
	wsHandler := handlers.NewWSHandler(sessionSvc, convoSvc, live, config.RedisClient, recognizer, synth, recordings, voice.Config{}, l)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Session:      sessionHandler,
		Conversation: convoHandler,
		WS:           wsHandler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// newLLM selects the completion provider: Vertex AI Gemini by default,
// OpenAI when LLM_PROVIDER=openai.
func newLLM(ctx context.Context) (llm.Provider, error) {
	if os.Getenv("LLM_PROVIDER") == "openai" {
		return llm.NewOpenAI(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_MODEL"))
	}
	project := os.Getenv("VERTEX_PROJECT_ID")
	location := os.Getenv("VERTEX_LOCATION")
	model := os.Getenv("VERTEX_MODEL")
	return llm.NewVertexGemini(ctx, project, location, model)
}
