package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hacktickets/config"
	"hacktickets/internal/booking"
	"hacktickets/internal/credential"
	"hacktickets/internal/session"
	"hacktickets/internal/stub"
	"hacktickets/internal/ticketing"
	"hacktickets/monitoring"
	"hacktickets/utils"
)

// credentialDir is where ticket QR PNGs land for offline use.
const credentialDir = "credentials"

func Start() error {
	// .env is optional; deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	args := os.Args[1:]
	command := "events"
	if len(args) > 0 {
		command = args[0]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "serve":
		return runServe(ctx, cfg, logger)
	case "login", "logout", "events", "tickets", "book":
	default:
		return fmt.Errorf("unknown command %q (expected serve, login, logout, events, tickets or book)", command)
	}

	// Everything below is client-side and needs the redis-backed session.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	store := session.NewStore(redisClient, cfg.SessionKey)
	if _, err := store.Restore(ctx); err != nil {
		logger.Warn("session restore failed, continuing unauthenticated", "error", err)
	}

	monitor := monitoring.NewMonitor()
	if cfg.EnableMetrics {
		go func() {
			if err := monitoring.Serve(":" + cfg.MetricsPort); err != nil {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	client := ticketing.NewClient(cfg.APIBaseURL, store, monitor, cfg.RequestTimeout, logger)
	encoder := credential.NewEncoder(cfg.VerifyBaseURL, cfg.QRSize, cfg.QRMargin)

	switch command {
	case "login":
		return runLogin(ctx, client, store)
	case "logout":
		return store.Clear(ctx)
	case "events":
		return runEvents(ctx, client)
	case "tickets":
		return runTickets(ctx, client, encoder, store, monitor, logger)
	case "book":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s book <event-id>", filepath.Base(os.Args[0]))
		}
		return runBook(ctx, cfg, client, encoder, store, args[1], logger)
	}
	return nil
}

// runServe hosts the in-memory stand-in for the remote ticketing service.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	server := stub.NewServer(cfg, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("stub ticketing service listening", "port", cfg.Port, "environment", cfg.Environment)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func runLogin(ctx context.Context, client *ticketing.Client, store *session.Store) error {
	in := bufio.NewScanner(os.Stdin)

	phone := prompt(in, "Phone number: ")
	challenge, err := client.SendOTP(ctx, phone)
	if err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	if challenge.OTP != "" {
		// Echoed by non-production deployments only.
		fmt.Printf("OTP (dev): %s\n", challenge.OTP)
	}

	otp := prompt(in, "OTP: ")
	result, err := client.VerifyOTP(ctx, phone, otp)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}

	if err := store.Establish(ctx, result.Token, result.User.Phone, result.User.IsAdmin); err != nil {
		return err
	}

	fmt.Printf("Logged in as %s\n", result.User.Phone)
	if result.User.IsAdmin {
		fmt.Println("Admin session")
	}
	return nil
}

func runEvents(ctx context.Context, client *ticketing.Client) error {
	events, err := client.Events(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	for _, e := range events {
		status := fmt.Sprintf("%d left", e.AvailableTickets)
		if e.SoldOut() {
			status = "SOLD OUT"
		}
		if !e.Active {
			status = "inactive"
		}
		fmt.Printf("%-4s %-32s %-24s %s  %s  [%s]\n",
			e.ID, e.Name, e.Location,
			time.Unix(e.Date, 0).Format("2006-01-02"),
			e.DisplayPrice(), status)
	}
	return nil
}

func runTickets(ctx context.Context, client *ticketing.Client, encoder *credential.Encoder, store *session.Store, monitor *monitoring.Monitor, logger *slog.Logger) error {
	if err := ensureSession(ctx, client, store); err != nil {
		return err
	}

	tickets, err := client.Bookings(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if len(tickets) == 0 {
		fmt.Println("No tickets yet.")
		return nil
	}

	token, _ := store.Token()
	images := credential.BuildQRMap(ctx, encoder, tickets, token, logger)

	for i := 0; i < len(images); i++ {
		monitor.TrackEncoding("ok")
	}
	for i := len(images); i < len(tickets); i++ {
		monitor.TrackEncoding("error")
	}

	if err := os.MkdirAll(credentialDir, 0o755); err != nil {
		return fmt.Errorf("credential dir: %w", err)
	}

	for _, t := range tickets {
		status := "valid"
		if t.Used {
			status = "used"
		}
		fmt.Printf("#%-5s %-32s %-24s %s  [%s]\n",
			t.TicketID, t.EventName, t.EventLocation,
			time.Unix(t.EventDate, 0).Format("2006-01-02"), status)

		img, ok := images[t.TicketID]
		if !ok {
			continue
		}
		path := filepath.Join(credentialDir, "ticket-"+t.TicketID+".png")
		if err := os.WriteFile(path, img, 0o644); err != nil {
			logger.Warn("failed to write credential", "path", path, "error", err)
			continue
		}
		fmt.Printf("       credential: %s\n", path)
	}
	return nil
}

func runBook(ctx context.Context, cfg *config.Config, client *ticketing.Client, encoder *credential.Encoder, store *session.Store, eventID string, logger *slog.Logger) error {
	if err := ensureSession(ctx, client, store); err != nil {
		return err
	}

	flowCfg := booking.Config{
		GatewayDelay:    cfg.GatewayDelay,
		SettleDelay:     cfg.SettleDelay,
		ProgressTick:    cfg.ProgressTick,
		ProgressStep:    cfg.ProgressStep,
		ProgressCeiling: cfg.ProgressCeiling,
	}

	flow, err := booking.NewFlow(ctx, client, encoder, store, eventID, flowCfg, logger)
	if err != nil {
		return err
	}
	defer flow.Close()

	event := flow.Event()
	fmt.Printf("%s\n%s, %s\nPrice: %s\nAvailable: %d\n\n",
		event.Name, event.Location,
		time.Unix(event.Date, 0).Format("2006-01-02"),
		event.DisplayPrice(), event.AvailableTickets)
	if event.SoldOut() {
		return fmt.Errorf("event %s is sold out", eventID)
	}

	flow.ProceedToPayment()

	in := bufio.NewScanner(os.Stdin)
	for {
		card := booking.PaymentCard{
			Number: booking.FormatCardNumber(prompt(in, "Card number: ")),
			Holder: prompt(in, "Cardholder name: "),
			Expiry: booking.FormatExpiry(prompt(in, "Expiry (MM/YY): ")),
			CVV:    prompt(in, "CVV: "),
		}

		err := flow.SubmitPayment(ctx, card)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Printf("%s\n\n", flow.ErrorMessage())
	}

	receipt := flow.Receipt()
	fmt.Printf("\nBooked. Ticket #%s\nTransaction: %s\nVerify at: %s\n",
		receipt.TicketID, receipt.TransactionHash, flow.PayloadURL())

	if err := os.MkdirAll(credentialDir, 0o755); err != nil {
		return fmt.Errorf("credential dir: %w", err)
	}
	path := filepath.Join(credentialDir, "ticket-"+receipt.TicketID+".png")
	if err := os.WriteFile(path, flow.QRImage(), 0o644); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	fmt.Printf("Credential: %s\n", path)
	return nil
}

// ensureSession runs the login exchange inline when no session exists, so
// authorized commands always land the user back where they started.
func ensureSession(ctx context.Context, client *ticketing.Client, store *session.Store) error {
	if store.IsAuthenticated() {
		return nil
	}
	fmt.Println("Login required.")
	return runLogin(ctx, client, store)
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}
