package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kindred-ai/kindred-api/config"
	"github.com/kindred-ai/kindred-api/database"
	"github.com/kindred-ai/kindred-api/handlers"
	agent_handlers "github.com/kindred-ai/kindred-api/handlers/agent"
	auth_handlers "github.com/kindred-ai/kindred-api/handlers/auth"
	chat_handlers "github.com/kindred-ai/kindred-api/handlers/chat"
	"github.com/kindred-ai/kindred-api/services"
	"github.com/kindred-ai/kindred-api/services/ark"
	"github.com/kindred-ai/kindred-api/services/storage"
	"github.com/kindred-ai/kindred-api/utils"
	"github.com/kindred-ai/kindred-api/utils/auth"
	"github.com/kindred-ai/kindred-api/utils/cache"
	"github.com/kindred-ai/kindred-api/utils/middleware"
	"gorm.io/gorm"
)

const defaultLiteModel = "doubao-seed-1-6-lite-251015"

func SetupRoutes(app *fiber.App, store database.Storage) {
	env, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "kindred-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Initialize Redis cache for brute force protection
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	// Initialize brute force protection
	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize auth handler with brute force protection
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)

	// Initialize the model gateway
	arkClient := ark.NewClient(ark.Config{
		APIKey:  env.ARK_API_KEY,
		BaseURL: env.ARK_BASE_URL,
		Model:   env.ARK_MODEL,
	})

	liteModel := env.ARK_LITE_MODEL
	if liteModel == "" {
		liteModel = defaultLiteModel
	}

	// Object storage is optional. Without it, chat file attachments are
	// rejected at the service layer.
	var storageClient *storage.Client
	if env.STORAGE_ACCESS_KEY != "" && env.STORAGE_SECRET_KEY != "" {
		storageClient, err = storage.NewClient(storage.Config{
			AccessKey: env.STORAGE_ACCESS_KEY,
			SecretKey: env.STORAGE_SECRET_KEY,
			Bucket:    env.STORAGE_BUCKET,
			Region:    env.STORAGE_REGION,
			Endpoint:  env.STORAGE_ENDPOINT,
			CDNURL:    env.STORAGE_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize object storage: %v. File uploads will be disabled.", err)
		}
	} else {
		log.Println("Object storage credentials not set, file uploads disabled")
	}

	// Initialize domain services
	lexicon := services.DefaultLexicon()
	intentService := services.NewIntentService(arkClient, liteModel, lexicon)
	knowledgeService := services.NewKnowledgeService(db, lexicon)
	agentService := services.NewAgentService(db)
	batchService := services.NewAgentBatchService(db, intentService, knowledgeService, arkClient)
	memoryService := services.NewMemoryService(db, arkClient)
	chatService := services.NewChatService(db, arkClient, intentService, storageClient)

	// Initialize handlers
	agentHandler := agent_handlers.NewAgentHandler(agentService, batchService, memoryService, knowledgeService)
	chatHandler := chat_handlers.NewChatHandler(db, chatService)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Agent routes (all protected - agents belong to their owner)
	agents := api.Group("/agents", authMiddleware.Required())
	agents.Post("/", agentHandler.CreateAgent)
	agents.Get("/", agentHandler.ListAgents)
	agents.Get("/:id", agentHandler.GetAgent)
	agents.Put("/:id", agentHandler.UpdateAgent)
	agents.Delete("/:id", agentHandler.DeleteAgent)

	// Agent dialogue
	agents.Get("/:id/chat", agentHandler.GetChat)
	agents.Post("/:id/chat/messages/batch", agentHandler.SendBatch)

	// Agent memory lifecycle
	agents.Post("/:id/chat/clear-and-summarize", agentHandler.ClearAndSummarize)
	agents.Get("/:id/prompt-history", agentHandler.ListPromptHistory)
	agents.Delete("/:id/prompt-history/latest", agentHandler.DeleteLatestSummary)

	// Agent knowledge base
	agents.Get("/:id/knowledge", agentHandler.ListKnowledge)
	agents.Get("/:id/knowledge/search", agentHandler.SearchKnowledge)

	// Chat routes (all protected - require authentication)
	chat := api.Group("/chat", authMiddleware.Required())

	// Session management
	chat.Get("/sessions", chatHandler.ListSessions)
	chat.Post("/sessions", chatHandler.CreateSession)
	chat.Get("/sessions/:id", chatHandler.GetSession)
	chat.Delete("/sessions/:id", chatHandler.DeleteSession)
	chat.Post("/sessions/:id/archive", chatHandler.ArchiveSession)

	// Message management
	chat.Get("/sessions/:id/messages", chatHandler.GetMessages)
	chat.Post("/sessions/:id/messages", chatHandler.SendMessage) // supports streaming

	// Attachment upload
	chat.Post("/uploads", chatHandler.UploadAttachment)
}
