package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/config"
	"github.com/oakwell/room-booking/internal/database"
	"github.com/oakwell/room-booking/internal/handler"
	"github.com/oakwell/room-booking/internal/middleware"
	"github.com/oakwell/room-booking/internal/payment"
	"github.com/oakwell/room-booking/internal/pricing"
	"github.com/oakwell/room-booking/internal/queue"
	"github.com/oakwell/room-booking/internal/repository"
	"github.com/oakwell/room-booking/internal/router"
	"github.com/oakwell/room-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rooms := repository.NewRoomRepo(db)
	bookings := repository.NewBookingRepo(db)
	credits := repository.NewCreditRepo(db)
	vouchers := repository.NewVoucherRepo(db)
	memberships := repository.NewMembershipRepo(db)

	// The gateway stays a nil interface when Stripe is not configured;
	// the booking service then rejects card shortfalls with a clear
	// validation error instead of a broken charge.
	var gateway payment.Gateway
	if sg := payment.NewStripeGateway(cfg.StripeSecretKey); sg != nil {
		gateway = sg
	} else {
		log.Println("stripe: no secret key, card payments disabled")
	}

	bookingSvc := service.NewBookingService(db, rooms, bookings, credits, vouchers, memberships, gateway, cfg.Currency)
	subscriptionSvc := service.NewSubscriptionService(db, credits, memberships, gateway)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis: unavailable, rate limiting and webhook dedup degrade to local state")
	}
	dedup := payment.NewDedupStore(rdb, 24*time.Hour)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterPublic(e, handler.NewRoomHandler(rooms))
	router.RegisterMember(e, handler.NewBookingHandler(bookings, bookingSvc), handler.NewBalanceHandler(credits, vouchers), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(db, credits, vouchers, memberships, bookingSvc, subscriptionSvc), cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(cfg.StripeWebhookSecret, dedup, bookingSvc, subscriptionSvc))

	// Notification consumer drains the broker queues in the background
	// and reconnects on failure.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	// Sweep confirmed bookings whose slot has passed into completed.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			n, err := bookings.MarkCompleted(context.Background(), time.Now().In(pricing.London()))
			if err != nil {
				log.Printf("mark completed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("marked %d bookings completed", n)
			}
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
