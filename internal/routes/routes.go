package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beyondthefold777/Barber-World-sub001/internal/cache"
	"github.com/beyondthefold777/Barber-World-sub001/internal/config"
	"github.com/beyondthefold777/Barber-World-sub001/internal/handlers"
	"github.com/beyondthefold777/Barber-World-sub001/internal/middleware"
	"github.com/beyondthefold777/Barber-World-sub001/internal/repository"
	"github.com/beyondthefold777/Barber-World-sub001/internal/services"
	chatws "github.com/beyondthefold777/Barber-World-sub001/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, badgeCache *cache.RedisCache) {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	hub := chatws.NewHub()
	go hub.Run()

	// The service takes the cache through a local interface; a typed nil
	// pointer would dodge its nil checks, so only pass one that exists.
	messagingService := services.NewMessagingService(
		db,
		conversationRepo,
		messageRepo,
		userRepo,
		badgeCacheOrNil(badgeCache),
		hub,
	)
	messagingHandler := handlers.NewMessagingHandler(messagingService, hub, cfg.JWTSecret)

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	messages := authProtected.Group("/messages")
	messages.Post("", messagingHandler.SendMessage)
	messages.Get("/thread/:otherUserId", messagingHandler.GetThread)
	messages.Put("/read/:conversationId", messagingHandler.MarkRead)
	messages.Get("/unread-count", messagingHandler.GetUnreadCount)

	authProtected.Get("/conversations", messagingHandler.ListConversations)

	api.Use("/v1/ws", messagingHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(messagingHandler.HandleWebSocket))
}

func badgeCacheOrNil(c *cache.RedisCache) services.BadgeCache {
	if c == nil {
		return nil
	}
	return c
}
