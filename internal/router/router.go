package router

import (
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/handlers"
	"github.com/anonto42/apollo/backend/internal/middleware"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/notifications"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/anonto42/apollo/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/ulule/limiter/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stores are the repositories of one document backend plus the profile tables
type Stores struct {
	Users         repositories.UserRepository
	Follows       repositories.FollowRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	Conversations repositories.ConversationRepository
	Live          repositories.LiveSource
}

// NewStores migrates the PostgreSQL profile tables and builds the document
// repositories for backend. Exactly one of fs and mdb is used.
func NewStores(backend string, pgdb *gorm.DB, fs *firestore.Client, mdb *mongo.Database) (*Stores, error) {
	if err := pgdb.AutoMigrate(&models.User{}, &models.Follow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	s := &Stores{
		Users:   repositories.NewPostgresUserRepository(pgdb),
		Follows: repositories.NewPostgresFollowRepository(pgdb),
	}

	switch backend {
	case config.BackendFirestore:
		if fs == nil {
			return nil, fmt.Errorf("firestore backend selected without a firestore client")
		}
		s.Posts = repositories.NewFirestorePostRepository(fs)
		s.Comments = repositories.NewFirestoreCommentRepository(fs)
		s.Conversations = repositories.NewFirestoreConversationRepository(fs)
		s.Live = repositories.NewFirestoreLiveSource(fs)
	case config.BackendMongo:
		if mdb == nil {
			return nil, fmt.Errorf("mongo backend selected without a mongo database")
		}
		s.Posts = repositories.NewMongoPostRepository(mdb)
		s.Comments = repositories.NewMongoCommentRepository(mdb)
		s.Conversations = repositories.NewMongoConversationRepository(mdb)
		s.Live = repositories.NewMongoLiveSource(mdb)
	default:
		return nil, fmt.Errorf("unknown document backend %q", backend)
	}
	return s, nil
}

// Deps carries everything the routes need
type Deps struct {
	Stores      *Stores
	Manager     *notifications.Manager
	AuthClient  handlers.AuthClient
	AuthLimiter *limiter.Limiter
	JWTSecret   string
	JWTTTL      time.Duration
	Settle      time.Duration
	Log         *zap.SugaredLogger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) {
	s := d.Stores
	log := d.Log

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Apollo API"})
	})

	authHandler := handlers.NewAuthHandler(s.Users, d.AuthClient, d.Manager, d.JWTSecret, d.JWTTTL, log.Named("auth"))

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(middleware.RateLimitMiddleware(d.AuthLimiter, log))
	}
	authHandler.RegisterAuthRoutes(authGroup)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(d.JWTSecret, s.Users))
	authHandler.RegisterSessionRoutes(api)

	handlers.NewUserHandler(s.Users, s.Posts, d.AuthClient, log.Named("users")).RegisterProfileRoutes(api)
	handlers.NewPostHandler(s.Posts, s.Users).RegisterPostRoutes(api)
	handlers.NewFeedHandler(s.Posts, s.Follows).RegisterFeedRoutes(api)
	handlers.NewFollowHandler(s.Follows, s.Users).RegisterFollowRoutes(api)
	handlers.NewCommentHandler(s.Comments, s.Posts, s.Users).RegisterCommentRoutes(api)
	handlers.NewLikeHandler(s.Posts, s.Users).RegisterLikeRoutes(api)
	handlers.NewConversationHandler(s.Conversations, s.Users, s.Live, log.Named("conversations")).RegisterConversationRoutes(api)
	handlers.NewNotificationHandler(d.Manager, d.Settle, log.Named("notifications")).RegisterNotificationRoutes(api)

	log.Infow("routes configured", "routes", len(e.Routes()))
}
