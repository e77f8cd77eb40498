package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketd/marketplace-api/internal/auth"
	"github.com/marketd/marketplace-api/internal/database"
	"github.com/marketd/marketplace-api/internal/ledger"
	"github.com/marketd/marketplace-api/internal/registry"
	"github.com/marketd/marketplace-api/internal/types"
	"github.com/marketd/marketplace-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minListings   = 5
	maxListings   = 25
	numWorkers    = 5
	jwtSecret     = "marketplace-secret-key"
	serverAddress = "http://localhost:8080"
	sellerFunds   = 10000
	buyerFunds    = 250000
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the marketplace API
type simulationClient struct {
	baseURL     string
	sellerToken string
	buyerToken  string
	client      *http.Client
	stats       map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates the demo seller and buyer and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"seed":    {name: "Seed Item/Funds"},
			"list":    {name: "Create Listing"},
			"order":   {name: "Create Order"},
			"fulfill": {name: "Fulfill Order"},
			"get":     {name: "Get Listing/Order"},
		},
	}

	sellerToken, err := sc.authenticate(auth.TestSellerKey, auth.TestSellerSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate seller: %w", err)
	}
	sc.sellerToken = sellerToken

	buyerToken, err := sc.authenticate(auth.TestBuyerKey, auth.TestBuyerSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate buyer: %w", err)
	}
	sc.buyerToken = buyerToken

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// post issues an authenticated POST and decodes the enveloped response data
func (sc *simulationClient) post(path, token, statKey string, payload interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest("POST", sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("POST response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("POST %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	envelope := struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// get issues an authenticated GET and decodes the enveloped response data
func (sc *simulationClient) get(path, token string, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["get"].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sc.stats["get"].failures++
		return fmt.Errorf("GET %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	envelope := struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// seedMarket registers items for the demo seller and provisions balances
func (sc *simulationClient) seedMarket(itemCount int) error {
	for itemID := 1; itemID <= itemCount; itemID++ {
		payload := map[string]interface{}{
			"item_id": itemID,
			"owner":   auth.TestSellerKey,
		}
		if err := sc.post("/api/v1/internal/items", sc.sellerToken, "seed", payload, nil); err != nil {
			return fmt.Errorf("register item %d: %w", itemID, err)
		}
	}

	for identity, amount := range map[string]int64{
		auth.TestSellerKey: sellerFunds,
		auth.TestBuyerKey:  buyerFunds,
	} {
		payload := map[string]int64{"amount": amount}
		path := fmt.Sprintf("/api/v1/internal/balances/%s/credit", identity)
		if err := sc.post(path, sc.sellerToken, "seed", payload, nil); err != nil {
			return fmt.Errorf("credit %s: %w", identity, err)
		}
	}

	return nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the marketplace simulation
// It starts a local API server, seeds the supply chain registry and
// balances, then drives concurrent list/order/fulfill traffic
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of listings to create
	targetListings := rand.Intn(maxListings-minListings) + minListings
	log.Info().Int("target_listings", targetListings).Msg("Starting simulation")

	if err := simClient.seedMarket(targetListings); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed market")
	}

	// Create listings concurrently; each worker lists its own items
	listingsChan := make(chan uint, targetListings)
	var wg sync.WaitGroup

	itemsPerWorker := targetListings / numWorkers
	for i := 0; i < numWorkers; i++ {
		firstItem := i*itemsPerWorker + 1
		lastItem := firstItem + itemsPerWorker - 1
		if i == numWorkers-1 {
			lastItem = targetListings
		}

		wg.Add(1)
		go func(workerID, firstItem, lastItem int) {
			defer wg.Done()
			createListingsHTTP(workerID, firstItem, lastItem, simClient, listingsChan)
		}(i, firstItem, lastItem)
	}

	wg.Wait()
	close(listingsChan)

	var listingIDs []uint
	for listingID := range listingsChan {
		listingIDs = append(listingIDs, listingID)
	}

	log.Info().Int("listings_created", len(listingIDs)).Msg("All listings created")

	stats := struct {
		TotalListings   int
		OrdersCreated   int
		OrdersFulfilled int
		FailedOrders    int
		FailedFulfills  int
		TotalValue      int64
		StartTime       time.Time
	}{
		StartTime:     time.Now(),
		TotalListings: len(listingIDs),
	}

	// Order against every listing, then fulfill
	var orderIDs []uint
	for _, listingID := range listingIDs {
		var listing types.Listing
		if err := simClient.get(fmt.Sprintf("/api/v1/listings/%d", listingID), simClient.buyerToken, &listing); err != nil {
			log.Error().Err(err).Uint("listing_id", listingID).Msg("Failed to fetch listing")
			continue
		}

		quantity := rand.Int63n(listing.Quantity) + 1
		var order types.Order
		payload := map[string]interface{}{
			"listing_id": listingID,
			"quantity":   quantity,
		}
		if err := simClient.post("/api/v1/orders", simClient.buyerToken, "order", payload, &order); err != nil {
			log.Error().Err(err).Uint("listing_id", listingID).Msg("Failed to create order")
			stats.FailedOrders++
			continue
		}

		orderIDs = append(orderIDs, order.ID)
		stats.OrdersCreated++
		stats.TotalValue += order.TotalPrice

		log.Info().
			Uint("order_id", order.ID).
			Uint("listing_id", listingID).
			Int64("quantity", order.Quantity).
			Int64("total_price", order.TotalPrice).
			Msg("Order created")
	}

	for _, orderID := range orderIDs {
		var order types.Order
		path := fmt.Sprintf("/api/v1/orders/%d/fulfill", orderID)
		if err := simClient.post(path, simClient.sellerToken, "fulfill", nil, &order); err != nil {
			log.Error().Err(err).Uint("order_id", orderID).Msg("Failed to fulfill order")
			stats.FailedFulfills++
			continue
		}
		stats.OrdersFulfilled++
		log.Info().
			Uint("order_id", orderID).
			Str("status", order.Status).
			Msg("Order fulfilled")
	}

	// Final balances
	var sellerBalance, buyerBalance struct {
		Identity string `json:"identity"`
		Amount   int64  `json:"amount"`
	}
	_ = simClient.get("/api/v1/balances/"+auth.TestSellerKey, simClient.sellerToken, &sellerBalance)
	_ = simClient.get("/api/v1/balances/"+auth.TestBuyerKey, simClient.buyerToken, &buyerBalance)

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("MARKETPLACE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Listings Created:  %d
Orders Created:    %d
Orders Fulfilled:  %d
Failed Orders:     %d
Failed Fulfills:   %d
Total Value:       %d
Seller Balance:    %d
Buyer Balance:     %d
Duration:          %v
`, stats.TotalListings, stats.OrdersCreated, stats.OrdersFulfilled,
		stats.FailedOrders, stats.FailedFulfills, stats.TotalValue,
		sellerBalance.Amount, buyerBalance.Amount, duration.Round(time.Millisecond))

	fmt.Println("\n" + strings.Repeat("=", 80))

	fulfillRate := 0.0
	if stats.OrdersCreated > 0 {
		fulfillRate = float64(stats.OrdersFulfilled) / float64(stats.OrdersCreated) * 100
	}
	log.Info().
		Float64("fulfill_rate", fulfillRate).
		Int("listings", stats.TotalListings).
		Int("orders", stats.OrdersCreated).
		Int64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// createListingsHTTP lists a contiguous range of registered items
// Runs as a worker goroutine, sending created listing IDs to listingsChan
func createListingsHTTP(workerID, firstItem, lastItem int, simClient *simulationClient, listingsChan chan<- uint) {
	for itemID := firstItem; itemID <= lastItem; itemID++ {
		payload := map[string]interface{}{
			"item_id":  itemID,
			"price":    rand.Int63n(900) + 100,
			"quantity": rand.Int63n(20) + 1,
		}

		var listing types.Listing
		if err := simClient.post("/api/v1/listings", simClient.sellerToken, "list", payload, &listing); err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Int("item_id", itemID).
				Msg("Failed to create listing")
			continue
		}

		listingsChan <- listing.ID
		log.Info().
			Int("worker_id", workerID).
			Uint("listing_id", listing.ID).
			Int("item_id", itemID).
			Msg("Listing created")

		// Random sleep between listings
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the marketplace API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(jwtSecret)
	supplyChain := registry.NewSupplyChain()
	ledgerService := ledger.NewService(db, supplyChain)

	// Register demo credentials
	authService.RegisterAPICredentials(auth.TestSellerKey, auth.TestSellerSecret)
	authService.RegisterAPICredentials(auth.TestBuyerKey, auth.TestBuyerSecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	registryHandlers := registry.NewGinHandlers(supplyChain)

	// Setup routes
	setupRoutes(router, authHandlers, ledgerHandlers, registryHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	registryHandlers *registry.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Listing routes
		listings := v1.Group("/listings")
		listings.Use(middleware.JWTAuth(jwtSecret))
		{
			listings.POST("", ledgerHandlers.CreateListingHandler())
			listings.PUT("/:listing_id", ledgerHandlers.UpdateListingHandler())
			listings.GET("/:listing_id", ledgerHandlers.GetListingHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", ledgerHandlers.CreateOrderHandler())
			orders.GET("/:order_id", ledgerHandlers.GetOrderHandler())
			orders.POST("/:order_id/fulfill", ledgerHandlers.FulfillOrderHandler())
		}

		// Balance routes
		balances := v1.Group("/balances")
		balances.Use(middleware.JWTAuth(jwtSecret))
		{
			balances.GET("/:identity", ledgerHandlers.GetBalanceHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/items", registryHandlers.RegisterItemHandler())
			internal.GET("/items/:item_id", registryHandlers.GetItemHandler())
			internal.POST("/balances/:identity/credit", ledgerHandlers.CreditBalanceHandler())
		}
	}
}
